package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Logging      LogConfig
	Client       ClientConfig
	Breaker      BreakerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Dependencies DependenciesConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ClientConfig holds outbound call configuration for the resilient client.
type ClientConfig struct {
	MaxRetries          int `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelayMs        int `envconfig:"RETRY_DELAY_MS" default:"1000"`
	ConnectionTimeoutMs int `envconfig:"CONNECTION_TIMEOUT_MS" default:"5000"`
	IdleConnTimeoutMs   int `envconfig:"IDLE_CONN_TIMEOUT_MS" default:"90000"`
}

// RetryDelay returns the delay between retry attempts.
func (c ClientConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// ConnectionTimeout returns the per-attempt timeout.
func (c ClientConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMs) * time.Millisecond
}

// IdleConnTimeout returns how long idle keep-alive connections are retained.
func (c ClientConfig) IdleConnTimeout() time.Duration {
	return time.Duration(c.IdleConnTimeoutMs) * time.Millisecond
}

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Threshold                int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"3"`
	ResetTimeoutMs           int `envconfig:"RESET_TIMEOUT_MS" default:"30000"`
	ErrorThresholdPercentage int `envconfig:"ERROR_THRESHOLD_PERCENTAGE" default:"50"`
}

// ResetTimeout returns the open-state cooldown before a probe is admitted.
func (c BreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(c.ResetTimeoutMs) * time.Millisecond
}

// AuthConfig holds credential validation cache configuration.
type AuthConfig struct {
	CacheTTLMs              int  `envconfig:"CACHE_TTL_MS" default:"300000"`
	CacheSweepIntervalMs    int  `envconfig:"CACHE_SWEEP_INTERVAL_MS" default:"900000"`
	AllowStaleOnCircuitOpen bool `envconfig:"ALLOW_STALE_ON_CIRCUIT_OPEN" default:"false"`
	StaleGraceMs            int  `envconfig:"STALE_GRACE_MS" default:"300000"`
}

// CacheTTL returns how long a validated credential stays fresh.
func (c AuthConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// CacheSweepInterval returns how often expired entries are swept.
func (c AuthConfig) CacheSweepInterval() time.Duration {
	return time.Duration(c.CacheSweepIntervalMs) * time.Millisecond
}

// StaleGrace returns how far past its TTL an entry may still be served
// when the identity dependency is unreachable.
func (c AuthConfig) StaleGrace() time.Duration {
	return time.Duration(c.StaleGraceMs) * time.Millisecond
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// DependenciesConfig holds base URLs of downstream services.
type DependenciesConfig struct {
	AuthServiceURL string `envconfig:"AUTH_SERVICE_URL" default:"http://localhost:4000"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
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
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Client: ClientConfig{
			MaxRetries:          3,
			RetryDelayMs:        1000,
			ConnectionTimeoutMs: 5000,
			IdleConnTimeoutMs:   90000,
		},
		Breaker: BreakerConfig{
			Threshold:                3,
			ResetTimeoutMs:           30000,
			ErrorThresholdPercentage: 50,
		},
		Auth: AuthConfig{
			CacheTTLMs:           300000,
			CacheSweepIntervalMs: 900000,
			StaleGraceMs:         300000,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Dependencies: DependenciesConfig{
			AuthServiceURL: "http://localhost:4000",
		},
	}
}
