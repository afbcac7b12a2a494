// Package config provides configuration for the readyup service.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	WSPort   int `env:"WS_PORT"   envDefault:"8090"` // Chat gateway WebSocket port
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"` // Organizer API and interaction webhook
	RPCPort  int `env:"RPC_PORT"  envDefault:"8091"` // JSON-RPC bridge for bot integrations, 0 disables

	// Auth settings
	APIKey string `env:"API_KEY"` // Static API key for hello.api_key validation

	// Storage
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:readyup.db?cache=shared&mode=rwc"`

	// Start command policy
	PolicyPath   string        `env:"POLICY_PATH"`
	MaxTimeout   time.Duration `env:"MAX_TIMEOUT"   envDefault:"1h"`
	MaxThreshold int           `env:"MAX_THRESHOLD" envDefault:"50"`

	// Start command defaults
	DefaultTimeout           time.Duration `env:"DEFAULT_TIMEOUT"             envDefault:"60s"`
	DefaultReadyThreshold    int           `env:"DEFAULT_READY_THRESHOLD"     envDefault:"3"`
	DefaultNotReadyThreshold int           `env:"DEFAULT_NOT_READY_THRESHOLD" envDefault:"1"`

	// WebSocket settings
	PingInterval   time.Duration `env:"WS_PING_INTERVAL"    envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT"    envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT"     envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DefaultReadyThreshold < 1 || cfg.DefaultNotReadyThreshold < 1 {
		return nil, fmt.Errorf("default thresholds must be at least 1")
	}
	if cfg.DefaultTimeout <= 0 {
		return nil, fmt.Errorf("default timeout must be positive")
	}
	return &cfg, nil
}
