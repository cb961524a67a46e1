package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Endpoint == "" {
		return errors.New("server.endpoint is required")
	}
	u, err := url.Parse(c.Server.Endpoint)
	if err != nil {
		return fmt.Errorf("server.endpoint is not a valid URL: %v", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server.endpoint scheme must be http(s) or ws(s), got %q", u.Scheme)
	}

	if c.Connection.MaxReconnectAttempts < 1 {
		return errors.New("connection.max_reconnect_attempts must be >= 1")
	}
	if c.Connection.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be positive")
	}
	if c.Connection.HandshakeTimeout <= 0 {
		return errors.New("connection.handshake_timeout must be positive")
	}

	if c.Transport.PollRetryLimit < 1 {
		return errors.New("transport.poll_retry_limit must be >= 1")
	}
	if c.Transport.BufferSize < 1 {
		return errors.New("transport.buffer_size must be >= 1")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
		}
	}

	switch c.Chat.Presence {
	case "", "online", "away", "offline":
	default:
		return fmt.Errorf("chat.presence must be online, away, or offline, got %q", c.Chat.Presence)
	}

	return nil
}
