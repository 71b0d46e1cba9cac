package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("OPENAI_API_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatDeployment)
	assert.Equal(t, "o1", cfg.ReasoningDeployment)
	assert.Equal(t, "o3-mini", cfg.FastReasoningDeployment)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingsDeployment)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 5, cfg.SweepIntervalMinutes)
	assert.Equal(t, 1000, cfg.DefaultMaxTokens)
	assert.InDelta(t, 0.7, cfg.DefaultTemperature, 0.001)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBlankDeployment(t *testing.T) {
	setRequired(t)
	t.Setenv("REASONING_DEPLOYMENT", "   ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REASONING_DEPLOYMENT")
}

func TestLoadRejectsBadEndpoint(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_ENDPOINT", "not a url")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_SWEEP_INTERVAL_MINUTES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadNormalizesLogSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}
