package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.BroadcastTickInterval)
	assert.Equal(t, 1024, cfg.MaxSubscribers)
	assert.Equal(t, 20.0, cfg.MutateRatePerSecond)
	assert.Equal(t, 40, cfg.MutateRateBurst)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BROADCAST_TICK_INTERVAL", "250ms")
	t.Setenv("MAX_SUBSCRIBERS", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 250*time.Millisecond, cfg.BroadcastTickInterval)
	assert.Equal(t, 16, cfg.MaxSubscribers)
}

func TestLoad_RejectsTooFastTick(t *testing.T) {
	t.Setenv("BROADCAST_TICK_INTERVAL", "1ms")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROADCAST_TICK_INTERVAL")
}

func TestLoad_RejectsInvalidLimits(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero subscribers", "MAX_SUBSCRIBERS", "0"},
		{"zero rate", "MUTATE_RATE_PER_SECOND", "0"},
		{"zero burst", "MUTATE_RATE_BURST", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
