// Package config handles loading and validation of client configuration.
//
// Configuration comes from a YAML file with ${VAR} expansion, then a
// small set of ATELIER_* environment variables is applied on top, so
// secrets never have to live in the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the realtime client.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Transport  TransportConfig  `yaml:"transport"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Chat       ChatConfig       `yaml:"chat"`
}

// ServerConfig identifies the realtime service and the credential
// presented to it.
type ServerConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ATELIER_ENDPOINT"`
	AuthToken string `yaml:"auth_token" env:"ATELIER_AUTH_TOKEN"`
}

// ConnectionConfig tunes the lifecycle manager.
type ConnectionConfig struct {
	AutoConnect          bool          `yaml:"auto_connect"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
}

// TransportConfig tunes the WebSocket and long-poll transports.
type TransportConfig struct {
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	PollRetryLimit int           `yaml:"poll_retry_limit"`
	PollRetryDelay time.Duration `yaml:"poll_retry_delay"`
	BufferSize     int           `yaml:"buffer_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port" env:"ATELIER_METRICS_PORT"`
	Path    string `yaml:"path"`
}

// ChatConfig carries chat-level client behavior.
type ChatConfig struct {
	DefaultProject string `yaml:"default_project" env:"ATELIER_PROJECT"`
	Presence       string `yaml:"presence"`
}

// Load reads and parses the YAML config at path. ${VAR} references are
// expanded from the environment before parsing, and ATELIER_* variables
// override the file afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads the config and fills unset optional fields.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads the config, fills defaults, and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
