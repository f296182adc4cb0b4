// Package config provides configuration types and defaults
package config

import (
	"fmt"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// IsValid checks whether the environment value is known.
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvProduction:
		return true
	}
	return false
}

// AppConfig holds application-level settings.
type AppConfig struct {
	// Name identifies the application in logs
	Name string `yaml:"name" json:"name"`

	// Environment selects the deployment environment
	Environment Environment `yaml:"environment" json:"environment"`

	// Debug enables verbose diagnostics
	Debug bool `yaml:"debug" json:"debug"`
}

// TCPConfig holds the TCP listener settings.
type TCPConfig struct {
	// Enabled turns the TCP listener on
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Address is the listen address, host:port
	Address string `yaml:"address" json:"address"`

	// WriteTimeout bounds a single frame write
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// HeartbeatInterval is the idle interval between ping frames
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
}

// WebSocketConfig holds the WebSocket listener settings.
type WebSocketConfig struct {
	// Enabled turns the WebSocket listener on
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Address is the HTTP listen address, host:port
	Address string `yaml:"address" json:"address"`

	// Path is the upgrade endpoint path
	Path string `yaml:"path" json:"path"`
}

// ServerConfig groups the transport listeners.
type ServerConfig struct {
	TCP       TCPConfig       `yaml:"tcp" json:"tcp"`
	WebSocket WebSocketConfig `yaml:"websocket" json:"websocket"`
}

// LoopConfig holds the dispatch loop settings.
type LoopConfig struct {
	// MailboxSize is the buffered work queue length
	MailboxSize int `yaml:"mailbox_size" json:"mailbox_size"`
}

// SessionConfig holds session-level limits.
type SessionConfig struct {
	// MaxSessions caps concurrently open sessions; zero means unlimited
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

// Config is the root configuration.
type Config struct {
	App     AppConfig     `yaml:"app" json:"app"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Loop    LoopConfig    `yaml:"loop" json:"loop"`
	Session SessionConfig `yaml:"session" json:"session"`

	// Custom carries application-defined fields
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is supplied.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "flexx",
			Environment: EnvDevelopment,
		},
		Server: ServerConfig{
			TCP: TCPConfig{
				Enabled:           true,
				Address:           "127.0.0.1:8750",
				WriteTimeout:      30 * time.Second,
				HeartbeatInterval: 15 * time.Second,
			},
			WebSocket: WebSocketConfig{
				Enabled: false,
				Address: "127.0.0.1:8751",
				Path:    "/session",
			},
		},
		Loop: LoopConfig{
			MailboxSize: 1024,
		},
		Session: SessionConfig{
			MaxSessions: 0,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("%w: app name is empty", ErrInvalidConfig)
	}
	if c.App.Environment != "" && !c.App.Environment.IsValid() {
		return fmt.Errorf("%w: unknown environment %q", ErrInvalidConfig, c.App.Environment)
	}
	if c.Server.TCP.Enabled && c.Server.TCP.Address == "" {
		return fmt.Errorf("%w: tcp enabled without an address", ErrInvalidConfig)
	}
	if c.Server.WebSocket.Enabled {
		if c.Server.WebSocket.Address == "" {
			return fmt.Errorf("%w: websocket enabled without an address", ErrInvalidConfig)
		}
		if c.Server.WebSocket.Path == "" {
			return fmt.Errorf("%w: websocket enabled without a path", ErrInvalidConfig)
		}
	}
	if c.Loop.MailboxSize < 0 {
		return fmt.Errorf("%w: negative mailbox size", ErrInvalidConfig)
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("%w: negative session limit", ErrInvalidConfig)
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
