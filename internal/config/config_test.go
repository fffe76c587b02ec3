package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "artifacts/cnn_model.ckpt", cfg.ModelPath)
	assert.Equal(t, int64(16), cfg.MaxUploadMB)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL_PATH", "/srv/models/catdog.ckpt")
	t.Setenv("MAX_UPLOAD_MB", "4")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/srv/models/catdog.ckpt", cfg.ModelPath)
	assert.Equal(t, int64(4), cfg.MaxUploadMB)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "shouting")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonNumericPort(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := Load()
	require.Error(t, err)
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := &Config{MaxUploadMB: 16}
	assert.Equal(t, int64(16<<20), cfg.MaxUploadBytes())
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(16), cfg.MaxUploadMB)
}
