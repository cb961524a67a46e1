// atelier-chat is an interactive terminal client for the realtime
// project chat service.
// Usage: go run ./cmd/atelier-chat --config configs/client.local.yaml
//
// Plain input lines are sent as chat messages to the current project.
// Slash commands control the session:
//
//	/connect            dial the service
//	/disconnect         drop the session and stay idle
//	/join <project>     join a project and make it current
//	/leave              leave the current project
//	/presence <status>  announce online, away, or offline
//	/typing start|stop  send typing signals
//	/status             show phase and last error
//	/quit               exit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atelierhq/realtime/internal/auth"
	"github.com/atelierhq/realtime/internal/config"
	"github.com/atelierhq/realtime/internal/connection"
	"github.com/atelierhq/realtime/internal/metrics"
	"github.com/atelierhq/realtime/internal/protocol"
	"github.com/atelierhq/realtime/internal/transport"
	"github.com/atelierhq/realtime/internal/version"
)

// session tracks the project the user is currently talking to. The
// command loop writes it and connect callbacks read it.
type session struct {
	mu      sync.Mutex
	project string
}

func (s *session) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

func (s *session) set(p string) {
	s.mu.Lock()
	s.project = p
	s.mu.Unlock()
}

func main() {
	configPath := flag.String("config", "configs/client.example.yaml", "path to config file")
	project := flag.String("project", "", "project to join on connect (overrides config)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so chat output on stdout stays readable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting atelier-chat",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	token, err := auth.ResolveToken(cfg.Server.AuthToken)
	if err != nil {
		logger.Error("failed to resolve auth token", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	dialer := transport.NewDialer(transport.Options{
		HandshakeTimeout: cfg.Transport.DialTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		PingTimeout:      cfg.Transport.PingTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		PollTimeout:      cfg.Transport.PollTimeout,
		PollRetryLimit:   cfg.Transport.PollRetryLimit,
		PollRetryDelay:   cfg.Transport.PollRetryDelay,
		BufferSize:       cfg.Transport.BufferSize,
	}, logger)

	mgr := connection.NewManager(connection.Config{
		Endpoint:             cfg.Server.Endpoint,
		AuthToken:            token,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Connection.ReconnectBaseDelay,
		HandshakeTimeout:     cfg.Connection.HandshakeTimeout,
	}, dialer, logger)

	sess := &session{}
	if *project != "" {
		sess.set(*project)
	} else {
		sess.set(cfg.Chat.DefaultProject)
	}
	presence := protocol.PresenceStatus(cfg.Chat.Presence)

	mgr.OnConnect(func() {
		fmt.Println("* connected")
		// Project membership is per session, so rejoin on every connect.
		if p := sess.get(); p != "" {
			mgr.JoinProject(p)
			mgr.UpdatePresence(p, presence)
			fmt.Printf("* joined %s\n", p)
		}
	})
	mgr.OnDisconnect(func(reason string) {
		fmt.Printf("* disconnected: %s\n", reason)
	})
	mgr.OnError(func(err error) {
		fmt.Printf("* error: %v\n", err)
	})
	mgr.OnMessage(func(msg protocol.ChatMessage) {
		who := msg.SenderEmail
		if msg.Persona != nil && msg.Persona.Name != "" {
			who = msg.Persona.Name
		}
		if who == "" {
			who = msg.SenderID
		}
		fmt.Printf("[%s] %s: %s\n", msg.ProjectID, who, msg.Message)
	})
	mgr.OnTyping(func(sig protocol.TypingSignal) {
		who := sig.UserEmail
		if who == "" {
			who = sig.UserID
		}
		if sig.IsTyping {
			fmt.Printf("* %s is typing...\n", who)
		} else {
			fmt.Printf("* %s stopped typing\n", who)
		}
	})
	mgr.OnPresence(func(sig protocol.PresenceSignal) {
		who := sig.UserEmail
		if who == "" {
			who = sig.UserID
		}
		fmt.Printf("* %s is %s\n", who, sig.Status)
	})

	if cfg.Connection.AutoConnect {
		mgr.Connect()
	} else {
		fmt.Println("* not connected; /connect to start")
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			shutdown(mgr, metricsSrv, logger)
			return

		case line, ok := <-lines:
			if !ok {
				cancel()
				continue
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := runCommand(mgr, sess, presence, line); quit {
					cancel()
				}
				continue
			}
			p := sess.get()
			if p == "" {
				fmt.Println("* no project joined; /join <project-id> first")
				continue
			}
			mgr.SendChatMessage(p, line, protocol.MessageText, nil)
		}
	}
}

// runCommand handles one slash command. It returns true when the user
// asked to quit.
func runCommand(mgr *connection.Manager, sess *session, presence protocol.PresenceStatus, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/connect":
		mgr.Connect()

	case "/disconnect":
		mgr.Disconnect()
		fmt.Println("* idle")

	case "/join":
		if len(args) != 1 {
			fmt.Println("* usage: /join <project-id>")
			return false
		}
		if p := sess.get(); p != "" && p != args[0] {
			mgr.LeaveProject(p)
		}
		sess.set(args[0])
		mgr.JoinProject(args[0])
		mgr.UpdatePresence(args[0], presence)
		fmt.Printf("* joined %s\n", args[0])

	case "/leave":
		p := sess.get()
		if p == "" {
			fmt.Println("* no project joined")
			return false
		}
		mgr.LeaveProject(p)
		sess.set("")
		fmt.Printf("* left %s\n", p)

	case "/presence":
		if len(args) != 1 {
			fmt.Println("* usage: /presence online|away|offline")
			return false
		}
		status := protocol.PresenceStatus(args[0])
		if !status.Valid() {
			fmt.Printf("* unknown presence %q\n", args[0])
			return false
		}
		if p := sess.get(); p != "" {
			mgr.UpdatePresence(p, status)
		}

	case "/typing":
		p := sess.get()
		if p == "" {
			fmt.Println("* no project joined")
			return false
		}
		if len(args) == 1 && args[0] == "stop" {
			mgr.StopTyping(p)
		} else {
			mgr.StartTyping(p)
		}

	case "/status":
		fmt.Printf("* phase=%s connected=%v connecting=%v\n", mgr.Phase(), mgr.IsConnected(), mgr.IsConnecting())
		if err := mgr.LastError(); err != nil {
			fmt.Printf("* last error: %v\n", err)
		}

	default:
		fmt.Printf("* unknown command %s\n", cmd)
	}
	return false
}

func shutdown(mgr *connection.Manager, metricsSrv *http.Server, logger *slog.Logger) {
	logger.Info("shutting down...")
	mgr.Close()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		metricsSrv.Shutdown(shutdownCtx)
	}

	logger.Info("atelier-chat stopped")
}
