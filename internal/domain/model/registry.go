package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"agent-server/internal/apperrors"
	"agent-server/internal/config"
)

// Registry is the static table of available model profiles. Built once from
// configuration at process start; lookups are read-only and safe for
// concurrent use.
type Registry struct {
	profiles map[ModelType]Profile
}

// NewRegistry builds the profile table from configuration. A missing
// deployment name fails construction.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	profiles := map[ModelType]Profile{
		TypeChat: {
			Type:              TypeChat,
			Name:              "gpt-4o-mini",
			Deployment:        cfg.ChatDeployment,
			MaxContextTokens:  128000,
			CostPer1KInput:    decimal.RequireFromString("0.000150"),
			CostPer1KOutput:   decimal.RequireFromString("0.000600"),
			Capabilities:      []string{"text", "vision"},
			SupportsFunctions: true,
			SupportsStreaming: true,
		},
		TypeVision: {
			Type:              TypeVision,
			Name:              "gpt-4o-mini-vision",
			Deployment:        cfg.VisionDeployment,
			MaxContextTokens:  128000,
			CostPer1KInput:    decimal.RequireFromString("0.000150"),
			CostPer1KOutput:   decimal.RequireFromString("0.000600"),
			Capabilities:      []string{"text", "vision", "image_analysis"},
			SupportsFunctions: true,
			SupportsStreaming: true,
		},
		TypeAudio: {
			Type:              TypeAudio,
			Name:              "gpt-4o-mini-audio",
			Deployment:        cfg.AudioDeployment,
			MaxContextTokens:  128000,
			CostPer1KInput:    decimal.RequireFromString("0.000150"),
			CostPer1KOutput:   decimal.RequireFromString("0.000600"),
			Capabilities:      []string{"text", "audio", "speech_recognition"},
			SupportsFunctions: true,
			SupportsStreaming: false,
		},
		TypeReasoning: {
			Type:              TypeReasoning,
			Name:              "o1",
			Deployment:        cfg.ReasoningDeployment,
			MaxContextTokens:  200000,
			CostPer1KInput:    decimal.RequireFromString("0.015"),
			CostPer1KOutput:   decimal.RequireFromString("0.060"),
			Capabilities:      []string{"advanced_reasoning", "complex_analysis"},
			SupportsFunctions: false,
			SupportsStreaming: false,
		},
		TypeFastReasoning: {
			Type:              TypeFastReasoning,
			Name:              "o3-mini",
			Deployment:        cfg.FastReasoningDeployment,
			MaxContextTokens:  128000,
			CostPer1KInput:    decimal.RequireFromString("0.006"),
			CostPer1KOutput:   decimal.RequireFromString("0.024"),
			Capabilities:      []string{"reasoning", "analysis", "decision_making"},
			SupportsFunctions: true,
			SupportsStreaming: true,
		},
		TypeEmbeddings: {
			Type:              TypeEmbeddings,
			Name:              "text-embedding-3-small",
			Deployment:        cfg.EmbeddingsDeployment,
			MaxContextTokens:  8191,
			CostPer1KInput:    decimal.RequireFromString("0.000020"),
			CostPer1KOutput:   decimal.Zero,
			Capabilities:      []string{"embeddings", "semantic_search"},
			SupportsFunctions: false,
			SupportsStreaming: false,
		},
	}

	for modelType, profile := range profiles {
		if strings.TrimSpace(profile.Deployment) == "" {
			return nil, fmt.Errorf("profile %q has no deployment configured", modelType)
		}
	}

	return &Registry{profiles: profiles}, nil
}

// ProfileFor returns the profile configured for the given model type.
func (r *Registry) ProfileFor(modelType ModelType) (Profile, error) {
	profile, ok := r.profiles[modelType]
	if !ok {
		return Profile{}, &apperrors.UnknownModelTypeError{ModelType: string(modelType)}
	}
	return profile, nil
}

// Types returns all configured model types.
func (r *Registry) Types() []ModelType {
	types := make([]ModelType, 0, len(r.profiles))
	for modelType := range r.profiles {
		types = append(types, modelType)
	}
	return types
}
