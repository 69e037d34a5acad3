// Package config provides application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration. Values come from the
// environment; a .env file is loaded by main before parsing.
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"./data/farmbot.db"`

	// SeedPath points at the catalog seed document. When the catalog is
	// empty at startup and the file exists, it is imported automatically.
	SeedPath string `env:"CATALOG_SEED_PATH" envDefault:"./farms.yaml"`

	// GatewayToken protects the platform WebSocket endpoint. Empty
	// disables authentication (development only).
	GatewayToken string `env:"GATEWAY_TOKEN"`

	StepTimeout  time.Duration `env:"STEP_TIMEOUT" envDefault:"30s"`
	PingCooldown time.Duration `env:"PING_COOLDOWN" envDefault:"60s"`

	// PingRoles maps a ping type to the role id it mentions, e.g.
	// PING_ROLES=giveaway:1398070710211182602,video:1398070755698413698
	PingRoles map[string]string `env:"PING_ROLES"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("STEP_TIMEOUT must be positive")
	}
	if c.PingCooldown <= 0 {
		return fmt.Errorf("PING_COOLDOWN must be positive")
	}
	return nil
}
