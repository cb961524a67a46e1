package connection

import "time"

// Reconnection defaults applied when the corresponding Config field is
// left zero.
const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultHandshakeTimeout     = 15 * time.Second
)

// Config configures a Manager.
type Config struct {
	// Endpoint is the base URL of the realtime service, e.g.
	// "https://chat.example.com".
	Endpoint string

	// AuthToken is the bearer credential presented during the
	// handshake. Connect refuses to dial without one.
	AuthToken string

	// AutoConnect makes NewManager dial immediately.
	AutoConnect bool

	// MaxReconnectAttempts is the retry budget for a single outage.
	MaxReconnectAttempts int

	// ReconnectBaseDelay is the linear backoff base: attempt n waits
	// n times this long.
	ReconnectBaseDelay time.Duration

	// HandshakeTimeout bounds one dial, including a transport
	// fallback.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns a Config with the stock reconnection policy.
// Endpoint and AuthToken must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectBaseDelay:   DefaultReconnectBaseDelay,
		HandshakeTimeout:     DefaultHandshakeTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return c
}
