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

	assert.Equal(t, 8090, cfg.WSPort)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 3, cfg.DefaultReadyThreshold)
	assert.Equal(t, 1, cfg.DefaultNotReadyThreshold)
	assert.Equal(t, time.Hour, cfg.MaxTimeout)
	assert.Equal(t, int64(65536), cfg.MaxMessageSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WS_PORT", "9000")
	t.Setenv("DEFAULT_TIMEOUT", "15m")
	t.Setenv("DEFAULT_READY_THRESHOLD", "5")
	t.Setenv("API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.WSPort)
	assert.Equal(t, 15*time.Minute, cfg.DefaultTimeout)
	assert.Equal(t, 5, cfg.DefaultReadyThreshold)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DEFAULT_READY_THRESHOLD", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnparsableDuration(t *testing.T) {
	t.Setenv("DEFAULT_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
