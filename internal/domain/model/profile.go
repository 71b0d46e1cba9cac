package model

import (
	"github.com/shopspring/decimal"
)

// ModelType identifies one backend model variant.
type ModelType string

const (
	TypeChat          ModelType = "chat"
	TypeVision        ModelType = "vision"
	TypeAudio         ModelType = "audio"
	TypeReasoning     ModelType = "reasoning"
	TypeFastReasoning ModelType = "fast_reasoning"
	TypeEmbeddings    ModelType = "embeddings"
)

// Profile describes one backend model variant: its deployment name, context
// budget, per-token pricing, and capabilities. Profiles are built once at
// startup and never mutated afterwards; all callers share them read-only.
type Profile struct {
	Type              ModelType
	Name              string
	Deployment        string
	MaxContextTokens  int
	CostPer1KInput    decimal.Decimal
	CostPer1KOutput   decimal.Decimal
	Capabilities      []string
	SupportsFunctions bool
	SupportsStreaming bool
}

// Cost returns the USD cost of a call with the given token counts:
// (input/1000)*costIn + (output/1000)*costOut.
func (p Profile) Cost(inputTokens, outputTokens int) decimal.Decimal {
	thousand := decimal.NewFromInt(1000)
	in := decimal.NewFromInt(int64(inputTokens)).Div(thousand).Mul(p.CostPer1KInput)
	out := decimal.NewFromInt(int64(outputTokens)).Div(thousand).Mul(p.CostPer1KOutput)
	return in.Add(out)
}
