package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Client.MaxRetries)
	assert.Equal(t, time.Second, cfg.Client.RetryDelay())
	assert.Equal(t, 5*time.Second, cfg.Client.ConnectionTimeout())
	assert.Equal(t, 3, cfg.Breaker.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.ResetTimeout())
	assert.Equal(t, 50, cfg.Breaker.ErrorThresholdPercentage)
	assert.Equal(t, 5*time.Minute, cfg.Auth.CacheTTL())
	assert.Equal(t, 15*time.Minute, cfg.Auth.CacheSweepInterval())
	assert.False(t, cfg.Auth.AllowStaleOnCircuitOpen)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY_MS", "250")
	t.Setenv("CIRCUIT_BREAKER_THRESHOLD", "10")
	t.Setenv("RESET_TIMEOUT_MS", "1500")
	t.Setenv("CACHE_TTL_MS", "60000")
	t.Setenv("ALLOW_STALE_ON_CIRCUIT_OPEN", "true")
	t.Setenv("AUTH_SERVICE_URL", "http://auth.internal:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Client.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.RetryDelay())
	assert.Equal(t, 10, cfg.Breaker.Threshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.Breaker.ResetTimeout())
	assert.Equal(t, time.Minute, cfg.Auth.CacheTTL())
	assert.True(t, cfg.Auth.AllowStaleOnCircuitOpen)
	assert.Equal(t, "http://auth.internal:9000", cfg.Dependencies.AuthServiceURL)
}

func TestDefaultMatchesLoad(t *testing.T) {
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}
