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
	Session   SessionConfig
	Storage   StorageConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// AllowOrigins is a comma separated CORS origin list
	AllowOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// SessionConfig controls how the embedding application builds its session.
type SessionConfig struct {
	// Threaded routes notifications through the bridge instead of
	// delivering them in-call.
	Threaded bool `envconfig:"SESSION_THREADED" default:"true"`
	// Project names a stored project to load at startup; empty starts blank.
	Project string `envconfig:"SESSION_PROJECT" default:""`
	// Name is the key used when the session is saved.
	Name string `envconfig:"SESSION_NAME" default:"default"`
}

// StorageConfig selects where projects are persisted.
type StorageConfig struct {
	Backend  string `envconfig:"STORAGE_BACKEND" default:"file"`
	Dir      string `envconfig:"STORAGE_DIR" default:"/tmp/nodeflow/projects"`
	Format   string `envconfig:"STORAGE_FORMAT" default:"json"`
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	Prefix   string `envconfig:"REDIS_PREFIX" default:"nodeflow"`
	// BreakerFailures consecutive Redis failures open the store breaker
	BreakerFailures int           `envconfig:"STORE_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"STORE_BREAKER_COOLDOWN" default:"30s"`
}

// MetricsConfig toggles Prometheus exposition.
type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"true"`
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot constrain on its own.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: want file or redis", c.Storage.Backend)
	}
	switch c.Storage.Format {
	case "json", "yaml", "toml":
	default:
		return fmt.Errorf("invalid STORAGE_FORMAT %q: want json, yaml or toml", c.Storage.Format)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.Session.Name == "" {
		return fmt.Errorf("SESSION_NAME cannot be empty")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8000",
			Host:         "0.0.0.0",
			AllowOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Session: SessionConfig{
			Threaded: true,
			Name:     "default",
		},
		Storage: StorageConfig{
			Backend:  "file",
			Dir:      "/tmp/nodeflow/projects",
			Format:   "json",
			RedisURL: "redis://localhost:6379/0",
			Prefix:   "nodeflow",

			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
