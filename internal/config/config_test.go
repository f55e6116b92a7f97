package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, BackendRedis, cfg.PresenceBackend)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, time.Hour, cfg.PresenceMaxIdle)
	assert.Equal(t, 5*time.Minute, cfg.PurgeInterval)
}

func TestLoadConfig_RequiredFields(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_BackendSelection(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("PRESENCE_BACKEND", BackendMemory)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.PresenceBackend)

	t.Setenv("PRESENCE_BACKEND", "cassandra")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDurations(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("PRESENCE_MAX_IDLE", "yesterday")
	_, err := LoadConfig()
	assert.Error(t, err)
}
