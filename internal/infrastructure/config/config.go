// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Terminal  TerminalConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// TerminalConfig holds session defaults. An empty Shell falls back to $SHELL
// and then /bin/bash at session creation.
type TerminalConfig struct {
	Shell        string        `envconfig:"TERMINAL_SHELL" default:""`
	Cols         int           `envconfig:"TERMINAL_COLS" default:"120"`
	Rows         int           `envconfig:"TERMINAL_ROWS" default:"30"`
	LogDir       string        `envconfig:"TERMINAL_LOG_DIR" default:"logs"`
	BufferChunks int           `envconfig:"TERMINAL_BUFFER_CHUNKS" default:"10000"`
	Settle       time.Duration `envconfig:"TERMINAL_SETTLE" default:"500ms"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Terminal: TerminalConfig{
			Cols:         120,
			Rows:         30,
			LogDir:       "logs",
			BufferChunks: 10000,
			Settle:       500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
