package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for agent-server.
type Config struct {
	// HTTP Server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Redis session cache
	RedisURL string `env:"REDIS_URL,notEmpty"`

	// OpenAI-compatible provider
	OpenAIEndpoint   string        `env:"OPENAI_ENDPOINT,notEmpty"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY,notEmpty"`
	OpenAIAPIVersion string        `env:"OPENAI_API_VERSION" envDefault:"2024-10-21"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRetries       int           `env:"MAX_RETRIES" envDefault:"3"`

	// Model deployments. Defaults follow the provider's published model
	// names; an explicitly empty value fails startup.
	ChatDeployment          string `env:"CHAT_DEPLOYMENT" envDefault:"gpt-4o-mini"`
	VisionDeployment        string `env:"VISION_DEPLOYMENT" envDefault:"gpt-4o-mini"`
	AudioDeployment         string `env:"AUDIO_DEPLOYMENT" envDefault:"gpt-4o-mini-audio-preview"`
	ReasoningDeployment     string `env:"REASONING_DEPLOYMENT" envDefault:"o1"`
	FastReasoningDeployment string `env:"FAST_REASONING_DEPLOYMENT" envDefault:"o3-mini"`
	EmbeddingsDeployment    string `env:"EMBEDDINGS_DEPLOYMENT" envDefault:"text-embedding-3-small"`

	// Generation defaults
	DefaultMaxTokens   int     `env:"DEFAULT_MAX_TOKENS" envDefault:"1000"`
	DefaultTemperature float32 `env:"DEFAULT_TEMPERATURE" envDefault:"0.7"`

	// Sessions
	SessionTimeout       time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	SweepIntervalMinutes int           `env:"SESSION_SWEEP_INTERVAL_MINUTES" envDefault:"5"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and validates required
// values. Missing deployments or connection strings fail startup rather than
// being silently defaulted.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.OpenAIEndpoint); err != nil {
		return nil, fmt.Errorf("invalid OPENAI_ENDPOINT: %w", err)
	}

	deployments := map[string]string{
		"CHAT_DEPLOYMENT":           cfg.ChatDeployment,
		"VISION_DEPLOYMENT":         cfg.VisionDeployment,
		"AUDIO_DEPLOYMENT":          cfg.AudioDeployment,
		"REASONING_DEPLOYMENT":      cfg.ReasoningDeployment,
		"FAST_REASONING_DEPLOYMENT": cfg.FastReasoningDeployment,
		"EMBEDDINGS_DEPLOYMENT":     cfg.EmbeddingsDeployment,
	}
	for name, value := range deployments {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s must not be empty", name)
		}
	}

	if cfg.MaxRetries < 1 {
		return nil, errors.New("MAX_RETRIES must be at least 1")
	}
	if cfg.SessionTimeout <= 0 {
		return nil, errors.New("SESSION_TIMEOUT must be positive")
	}
	if cfg.SweepIntervalMinutes <= 0 {
		return nil, errors.New("SESSION_SWEEP_INTERVAL_MINUTES must be positive")
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	return cfg, nil
}
