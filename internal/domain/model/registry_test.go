package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-server/internal/apperrors"
	"agent-server/internal/config"
)

func fullConfig() *config.Config {
	return &config.Config{
		ChatDeployment:          "chat-deploy",
		VisionDeployment:        "vision-deploy",
		AudioDeployment:         "audio-deploy",
		ReasoningDeployment:     "o1",
		FastReasoningDeployment: "o3-mini",
		EmbeddingsDeployment:    "embed-deploy",
	}
}

func TestNewRegistryMissingDeploymentFails(t *testing.T) {
	cfg := fullConfig()
	cfg.ReasoningDeployment = "   "

	_, err := NewRegistry(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoning")
}

func TestProfileFor(t *testing.T) {
	registry, err := NewRegistry(fullConfig())
	require.NoError(t, err)

	profile, err := registry.ProfileFor(TypeChat)
	require.NoError(t, err)
	assert.Equal(t, "chat-deploy", profile.Deployment)
	assert.Equal(t, 128000, profile.MaxContextTokens)
	assert.True(t, profile.SupportsStreaming)

	embeddings, err := registry.ProfileFor(TypeEmbeddings)
	require.NoError(t, err)
	assert.Equal(t, 8191, embeddings.MaxContextTokens)
	assert.False(t, embeddings.SupportsStreaming)
}

func TestProfileForUnknownType(t *testing.T) {
	registry, err := NewRegistry(fullConfig())
	require.NoError(t, err)

	_, err = registry.ProfileFor("quantum")
	var unknown *apperrors.UnknownModelTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "quantum", unknown.ModelType)
}

func TestProfileCost(t *testing.T) {
	p := Profile{
		CostPer1KInput:  decimal.RequireFromString("0.015"),
		CostPer1KOutput: decimal.RequireFromString("0.060"),
	}

	// (2000/1000)*0.015 + (500/1000)*0.060 = 0.03 + 0.03
	assert.True(t, p.Cost(2000, 500).Equal(decimal.RequireFromString("0.06")))
	assert.True(t, p.Cost(0, 0).IsZero())
}
