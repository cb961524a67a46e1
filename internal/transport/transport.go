package transport

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atelierhq/realtime/internal/protocol"
)

// Errors
var (
	ErrAlreadyClosed = errors.New("transport already closed")
	ErrAuthRejected  = errors.New("authentication rejected")
	ErrStaleSession  = errors.New("session stale (no ping)")
)

// Mode identifies which transport carries a session.
type Mode string

const (
	ModeWebSocket Mode = "websocket"
	ModeLongPoll  Mode = "longpoll"
)

// CloseReason classifies why a session ended.
type CloseReason string

const (
	// ReasonServerClose means the server deliberately ended the session.
	ReasonServerClose CloseReason = "server disconnect"

	// ReasonClientClose means the session ended via a local Close call.
	ReasonClientClose CloseReason = "client disconnect"

	// ReasonTransportClose means the channel dropped without a deliberate close.
	ReasonTransportClose CloseReason = "transport close"

	// ReasonPingTimeout means the peer went silent past the staleness deadline.
	ReasonPingTimeout CloseReason = "ping timeout"
)

// Disconnect describes how a session ended.
type Disconnect struct {
	Reason CloseReason
	Err    error // underlying fault, nil for deliberate closes
}

// ServerInitiated reports whether the remote deliberately ended the session.
func (d Disconnect) ServerInitiated() bool {
	return d.Reason == ReasonServerClose
}

// Transport is a live, authenticated session with the realtime service.
type Transport interface {
	// Send writes one envelope to the server.
	Send(env protocol.Envelope) error

	// Messages returns the inbound envelope stream. Delivery blocks rather
	// than drops, and the channel closes when the session ends.
	Messages() <-chan protocol.Envelope

	// Closed yields exactly one Disconnect when the session ends,
	// whatever the cause.
	Closed() <-chan Disconnect

	// Close tears the session down locally. Idempotent.
	Close() error

	// Mode identifies the underlying transport.
	Mode() Mode
}

// Dialer establishes sessions.
type Dialer interface {
	// Dial performs the handshake against endpoint, presenting token as a
	// bearer credential. It returns a live Transport or the handshake error.
	Dial(ctx context.Context, endpoint, token string) (Transport, error)
}

// Options tune the concrete transports.
type Options struct {
	HandshakeTimeout time.Duration // dial/handshake deadline
	PingInterval     time.Duration // websocket keepalive cadence
	PingTimeout      time.Duration // staleness deadline
	WriteTimeout     time.Duration // write deadline for sends
	PollTimeout      time.Duration // ceiling for one long-poll request
	PollRetryLimit   int           // consecutive poll failures before giving up
	PollRetryDelay   time.Duration // wait between failed polls
	BufferSize       int           // inbound channel capacity
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      45 * time.Second,
		WriteTimeout:     5 * time.Second,
		PollTimeout:      30 * time.Second,
		PollRetryLimit:   3,
		PollRetryDelay:   500 * time.Millisecond,
		BufferSize:       256,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = def.HandshakeTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = def.PingTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = def.PollTimeout
	}
	if o.PollRetryLimit <= 0 {
		o.PollRetryLimit = def.PollRetryLimit
	}
	if o.PollRetryDelay <= 0 {
		o.PollRetryDelay = def.PollRetryDelay
	}
	if o.BufferSize <= 0 {
		o.BufferSize = def.BufferSize
	}
	return o
}

// wsURL converts a service base URL to the websocket endpoint.
func wsURL(endpoint string) string {
	u := endpoint
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimSuffix(u, "/") + "/ws"
}

// httpURL converts a service base URL to the HTTP base for long-polling.
func httpURL(endpoint string) string {
	u := endpoint
	switch {
	case strings.HasPrefix(u, "wss://"):
		u = "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		u = "http://" + strings.TrimPrefix(u, "ws://")
	}
	return strings.TrimSuffix(u, "/")
}
