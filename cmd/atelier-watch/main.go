// atelier-watch connects to the realtime service and streams chat
// events to the console as they arrive.
// Usage: go run ./cmd/atelier-watch --config configs/client.local.yaml --projects p1,p2
//
// The auth token comes from the config file; set ATELIER_AUTH_TOKEN to
// override it without editing the file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atelierhq/realtime/internal/auth"
	"github.com/atelierhq/realtime/internal/config"
	"github.com/atelierhq/realtime/internal/connection"
	"github.com/atelierhq/realtime/internal/protocol"
	"github.com/atelierhq/realtime/internal/transport"
	"github.com/atelierhq/realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.example.yaml", "path to config file")
	projectsFlag := flag.String("projects", "", "comma-separated project ids to watch (overrides config)")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	logger.Info("starting atelier-watch",
		"version", version.Version,
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
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	projects := splitProjects(*projectsFlag)
	if len(projects) == 0 && cfg.Chat.DefaultProject != "" {
		projects = []string{cfg.Chat.DefaultProject}
	}
	if len(projects) == 0 {
		logger.Error("no projects to watch; pass --projects or set chat.default_project")
		os.Exit(1)
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

	mgr.OnConnect(func() {
		logger.Info("connected", "endpoint", cfg.Server.Endpoint, "projects", len(projects))
		for _, p := range projects {
			mgr.JoinProject(p)
		}
	})
	mgr.OnDisconnect(func(reason string) {
		logger.Warn("disconnected", "reason", reason)
	})
	mgr.OnError(func(err error) {
		logger.Error("connection error", "error", err)
	})
	mgr.OnMessage(func(msg protocol.ChatMessage) {
		printMessage(msg, *verbose)
	})
	mgr.OnTyping(func(sig protocol.TypingSignal) {
		printTyping(sig, *verbose)
	})
	mgr.OnPresence(func(sig protocol.PresenceSignal) {
		printPresence(sig, *verbose)
	})

	mgr.Connect()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("stats",
					"phase", mgr.Phase().String(),
					"connected", mgr.IsConnected(),
				)
			}
		}
	}()

	logger.Info("watching - press Ctrl+C to stop")

	<-ctx.Done()

	logger.Info("shutting down...")
	mgr.Close()
	logger.Info("shutdown complete")
}

func splitProjects(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printMessage(msg protocol.ChatMessage, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Printf("[MESSAGE] %s\n", data)
		return
	}

	sender := msg.SenderEmail
	if msg.Persona != nil && msg.Persona.Name != "" {
		sender = msg.Persona.Name
	}
	if msg.ThreadID != "" {
		fmt.Printf("[MESSAGE] project=%s sender=%s type=%s thread=%s text=%q\n",
			msg.ProjectID, sender, msg.Type, msg.ThreadID, msg.Message)
	} else {
		fmt.Printf("[MESSAGE] project=%s sender=%s type=%s text=%q\n",
			msg.ProjectID, sender, msg.Type, msg.Message)
	}
}

func printTyping(sig protocol.TypingSignal, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(sig, "", "  ")
		fmt.Printf("[TYPING] %s\n", data)
		return
	}

	state := "stopped"
	if sig.IsTyping {
		state = "typing"
	}
	fmt.Printf("[TYPING] project=%s user=%s state=%s\n", sig.ProjectID, sig.UserID, state)
}

func printPresence(sig protocol.PresenceSignal, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(sig, "", "  ")
		fmt.Printf("[PRESENCE] %s\n", data)
		return
	}

	fmt.Printf("[PRESENCE] project=%s user=%s status=%s\n", sig.ProjectID, sig.UserID, sig.Status)
}
