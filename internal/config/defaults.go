package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultEndpoint             = "http://localhost:3000"
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultHandshakeTimeout     = 15 * time.Second
	DefaultDialTimeout          = 10 * time.Second
	DefaultPingInterval         = 15 * time.Second
	DefaultPingTimeout          = 45 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPollTimeout          = 30 * time.Second
	DefaultPollRetryLimit       = 3
	DefaultPollRetryDelay       = 500 * time.Millisecond
	DefaultBufferSize           = 256
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultPresence             = "online"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Endpoint == "" {
		c.Server.Endpoint = DefaultEndpoint
	}

	// Connection defaults
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Transport defaults
	if c.Transport.DialTimeout == 0 {
		c.Transport.DialTimeout = DefaultDialTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PingTimeout == 0 {
		c.Transport.PingTimeout = DefaultPingTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PollTimeout == 0 {
		c.Transport.PollTimeout = DefaultPollTimeout
	}
	if c.Transport.PollRetryLimit == 0 {
		c.Transport.PollRetryLimit = DefaultPollRetryLimit
	}
	if c.Transport.PollRetryDelay == 0 {
		c.Transport.PollRetryDelay = DefaultPollRetryDelay
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Chat defaults
	if c.Chat.Presence == "" {
		c.Chat.Presence = DefaultPresence
	}
}
