package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"GOOGLE_API_KEY", "GEMINI_API_KEY", "DEFAULT_MODEL", "EVALUATOR_MODEL", "EVALUATOR_BACKEND",
	"MAX_ITERATIONS", "DATABASE_URL", "PORT", "LOG_LEVEL", "REQUEST_TIMEOUT_SECONDS",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, 5*time.Minute, cfg.RequestTimeout())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "fallback-key")
	t.Setenv("MAX_ITERATIONS", "4")
	t.Setenv("EVALUATOR_BACKEND", "LangChain")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "fallback-key", cfg.GoogleAPIKey)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, BackendLangChain, cfg.EvaluatorBackend)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 300, cfg.RequestTimeoutSeconds)

	t.Setenv("GOOGLE_API_KEY", "primary-key")
	assert.Equal(t, "primary-key", Load().GoogleAPIKey)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_model: gemini-2.5-pro
max_iterations: 2
port: "9000"
request_timeout_seconds: 0
`), 0o644))
	t.Setenv("PORT", "9100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.DefaultModel)
	assert.Equal(t, 2, cfg.MaxIterations)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout())
	assert.Equal(t, BackendGenAI, cfg.EvaluatorBackend)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: [1, 2"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
