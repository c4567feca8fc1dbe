package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Roots   RootsConfig
	Grants  GrantsConfig
	Media   MediaConfig
	Logging LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// RootsConfig holds the storage locations exposed as document roots.
type RootsConfig struct {
	// InternalPath is the application-private sandbox, always present.
	InternalPath string `envconfig:"ROOT_INTERNAL" default:"/var/lib/safgate/internal"`
	// ExternalPath is the shared sandbox; the root is omitted when unreachable.
	ExternalPath string `envconfig:"ROOT_EXTERNAL" default:""`
}

// GrantsConfig holds the persistent grant store configuration.
type GrantsConfig struct {
	DBPath string `envconfig:"GRANTS_DB" default:"/var/lib/safgate/grants.db"`
}

// MediaConfig holds the external media index configuration.
type MediaConfig struct {
	// IndexPath points at the read-only media index database. Empty means
	// the scoped-media model is unavailable and queries return no rows.
	IndexPath string `envconfig:"MEDIA_INDEX" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
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
			Port: "8400",
			Host: "0.0.0.0",
		},
		Roots: RootsConfig{
			InternalPath: "/var/lib/safgate/internal",
		},
		Grants: GrantsConfig{
			DBPath: "/var/lib/safgate/grants.db",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
