package router

import (
	"context"
	"fmt"

	"agent-server/internal/domain/model"
)

// CompletionRequest is the provider-facing shape of one dispatch.
type CompletionRequest struct {
	Deployment  string
	Messages    []model.Message
	Temperature float32
	MaxTokens   int
}

// Completion is a single non-streamed provider response.
type Completion struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Chunk is one partial-content element of a streamed response. Token counts
// are only populated on the final chunk, when the provider reports usage.
type Chunk struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// ChunkStream is an open, lazily-consumed streamed response. Recv returns
// io.EOF once the stream is exhausted.
type ChunkStream interface {
	Recv() (Chunk, error)
	Close() error
}

// Provider abstracts the hosted model backend. Implementations hold the
// process-wide client connection and must be safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	CompleteStream(ctx context.Context, req CompletionRequest) (ChunkStream, error)
	Embed(ctx context.Context, deployment string, texts []string) ([][]float32, error)
}

// ProviderError is the structured failure payload provider implementations
// return. StatusCode is zero for transport-level failures that never reached
// the backend.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider call failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("provider call failed: %s", e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
