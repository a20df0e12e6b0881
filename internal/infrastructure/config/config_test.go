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

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 100, cfg.ReplayCapacity)
	assert.Equal(t, time.Hour, cfg.IdleTimeout)
	assert.Equal(t, 30*time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, 4, cfg.DispatchWorkers)
	assert.Equal(t, 100, cfg.DispatchQueueSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REPLAY_CAPACITY", "250")
	t.Setenv("HEARTBEAT_INTERVAL", "5m")
	t.Setenv("DISPATCH_WORKERS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 250, cfg.ReplayCapacity)
	assert.Equal(t, 5*time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, 2, cfg.DispatchWorkers)
}
