package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atelierhq/realtime/internal/protocol"
)

// wsTransport is a live WebSocket session.
type wsTransport struct {
	conn   *websocket.Conn
	opts   Options
	logger *slog.Logger

	messages  chan protocol.Envelope
	closed    chan Disconnect
	done      chan struct{}
	closeOnce sync.Once

	// Write serialization
	writeMu sync.Mutex

	mu         sync.Mutex
	lastPingAt time.Time
	shutdown   bool
}

// DialWebSocket performs the WebSocket handshake against the service
// endpoint. A 401 or 403 response maps to ErrAuthRejected.
func DialWebSocket(ctx context.Context, endpoint, token string, opts Options, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL(endpoint), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	t := &wsTransport{
		conn:       conn,
		opts:       opts,
		logger:     logger,
		messages:   make(chan protocol.Envelope, opts.BufferSize),
		closed:     make(chan Disconnect, 1),
		done:       make(chan struct{}),
		lastPingAt: time.Now(),
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		t.markAlive()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		t.markAlive()
		return nil
	})

	go t.readLoop()
	go t.heartbeatLoop()

	logger.Debug("websocket connected", "endpoint", endpoint)

	return t, nil
}

func (t *wsTransport) markAlive() {
	t.mu.Lock()
	t.lastPingAt = time.Now()
	t.mu.Unlock()
}

// Send writes one envelope as a text frame.
func (t *wsTransport) Send(env protocol.Envelope) error {
	select {
	case <-t.done:
		return ErrAlreadyClosed
	default:
	}

	data, err := env.Encode()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the inbound envelope stream.
func (t *wsTransport) Messages() <-chan protocol.Envelope {
	return t.messages
}

// Closed returns the terminal disconnect channel.
func (t *wsTransport) Closed() <-chan Disconnect {
	return t.closed
}

// Mode identifies this transport.
func (t *wsTransport) Mode() Mode {
	return ModeWebSocket
}

// Close tears the session down locally.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	t.mu.Unlock()

	close(t.done)
	t.deliverClose(Disconnect{Reason: ReasonClientClose})

	// Send close message
	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return t.conn.Close()
}

// deliverClose publishes the first terminal disconnect; later ones lose.
func (t *wsTransport) deliverClose(d Disconnect) {
	t.closeOnce.Do(func() {
		t.closed <- d
	})
}

// readLoop reads frames and forwards decoded envelopes.
func (t *wsTransport) readLoop() {
	defer close(t.messages)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-t.done:
			default:
				t.deliverClose(classifyWSClose(err))
			}
			return
		}

		env, perr := protocol.ParseEnvelope(data)
		if perr != nil {
			t.logger.Warn("dropping malformed frame", "error", perr)
			continue
		}

		select {
		case t.messages <- env:
		case <-t.done:
			return
		}
	}
}

// classifyWSClose maps a read error to a disconnect cause. Only a normal
// close frame counts as the server deliberately ending the session.
func classifyWSClose(err error) Disconnect {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return Disconnect{Reason: ReasonServerClose}
	}
	return Disconnect{Reason: ReasonTransportClose, Err: err}
}

// heartbeatLoop sends pings and watches for stale sessions.
func (t *wsTransport) heartbeatLoop() {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.opts.WriteTimeout)
			if err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.Lock()
			lastPing := t.lastPingAt
			t.mu.Unlock()

			if time.Since(lastPing) > t.opts.PingTimeout {
				t.logger.Warn("no ping received, session stale",
					"last_ping", lastPing,
					"timeout", t.opts.PingTimeout,
				)
				t.deliverClose(Disconnect{Reason: ReasonPingTimeout, Err: ErrStaleSession})
				t.conn.Close()
				return
			}
		}
	}
}
