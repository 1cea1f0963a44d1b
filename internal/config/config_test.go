package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"txtinspect/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: \"9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Session.PreviewRows)
	assert.False(t, cfg.Session.LegacyCursorBounds)
	assert.Equal(t, 2*time.Hour, cfg.Session.IdleTimeout)
	assert.Equal(t, "./data/txtinspect.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 3, cfg.MaxFailuresBeforeSwitch)
	assert.False(t, cfg.HasLLM())
}

func TestLoadConfigProviders(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "secret")

	cfg, err := LoadConfig(writeConfig(t, `
session:
  preview_rows: 0
  legacy_cursor_bounds: true
  idle_timeout: 30m
providers:
  - type: groq
    api_key: ${TEST_GROQ_KEY}
    model_name: llama-3.3-70b-versatile
    retry_delay: 2s
    requests_per_minute: 30
`))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Session.PreviewRows)
	assert.True(t, cfg.Session.LegacyCursorBounds)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)

	require.Len(t, cfg.Providers, 1)
	p := cfg.Providers[0]
	assert.Equal(t, llm.ProviderGroq, p.Type)
	assert.Equal(t, "secret", p.APIKey)
	assert.Equal(t, 2*time.Second, p.RetryDelay)
	assert.Equal(t, 30, p.RequestsPerMinute)
	assert.True(t, cfg.HasLLM())
}

func TestHasLLMIgnoresPlaceholderKey(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "gemini:\n  api_key: YOUR_API_KEY_HERE\n"))
	require.NoError(t, err)
	assert.False(t, cfg.HasGemini())
	assert.False(t, cfg.HasLLM())

	t.Setenv("TEST_GEMINI_KEY", "real-key")
	cfg, err = LoadConfig(writeConfig(t, "gemini:\n  api_key: ${TEST_GEMINI_KEY}\n"))
	require.NoError(t, err)
	assert.True(t, cfg.HasGemini())
	assert.True(t, cfg.HasLLM())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
