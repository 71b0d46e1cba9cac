package router

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"agent-server/internal/domain/model"
)

// Stream is an open streamed call. Ledger accounting runs exactly once, at
// the final chunk, a stream failure, or Close, using the cumulative counts
// observed so far.
type Stream struct {
	router   *Router
	profile  model.Profile
	messages []model.Message
	inner    ChunkStream
	ctx      context.Context
	start    time.Time

	content      strings.Builder
	inputTokens  int
	outputTokens int
	settleOnce   sync.Once
}

// ChatStream runs the same resolution, budget, and dispatch steps as Chat
// but returns an open stream of partial-content chunks. Retry applies to
// opening the stream only.
func (r *Router) ChatStream(ctx context.Context, req ChatRequest) (*Stream, error) {
	profile, err := r.resolveProfile(req)
	if err != nil {
		return nil, err
	}
	if !profile.SupportsStreaming {
		profile, err = r.registry.ProfileFor(model.TypeChat)
		if err != nil {
			return nil, err
		}
	}

	if err := r.counter.ValidateBudget(req.Messages, profile); err != nil {
		return nil, err
	}

	start := time.Now()
	inner, err := withRetry(ctx, r.retry, "chat_completion_stream", func() (ChunkStream, error) {
		return r.provider.CompleteStream(ctx, r.completionRequest(profile, req))
	})
	if err != nil {
		return nil, r.failCall(ctx, profile, req.Messages, err)
	}

	return &Stream{
		router:   r,
		profile:  profile,
		messages: req.Messages,
		inner:    inner,
		ctx:      ctx,
		start:    start,
	}, nil
}

// Recv returns the next chunk. io.EOF marks the normal end of the stream and
// triggers success accounting; any other error triggers failure accounting
// and is returned classified.
func (s *Stream) Recv() (Chunk, error) {
	chunk, err := s.inner.Recv()
	if err == io.EOF {
		s.settleSuccess()
		return Chunk{}, io.EOF
	}
	if err != nil {
		return Chunk{}, s.settleFailure(err)
	}

	s.content.WriteString(chunk.Content)
	if chunk.InputTokens > 0 {
		s.inputTokens = chunk.InputTokens
	}
	if chunk.OutputTokens > 0 {
		s.outputTokens = chunk.OutputTokens
	}
	return chunk, nil
}

// Profile reports which profile the stream was dispatched on.
func (s *Stream) Profile() model.Profile {
	return s.profile
}

// Close releases the underlying stream. An abandoned stream settles as a
// success with the counts observed up to that point.
func (s *Stream) Close() error {
	s.settleSuccess()
	return s.inner.Close()
}

func (s *Stream) settleSuccess() {
	s.settleOnce.Do(func() {
		inputTokens := s.inputTokens
		if inputTokens <= 0 {
			inputTokens = s.router.counter.CountMessages(s.messages)
		}
		outputTokens := s.outputTokens
		if outputTokens <= 0 {
			outputTokens = s.router.counter.Count(s.content.String())
		}
		s.router.ledger.RecordSuccess(s.profile, inputTokens, outputTokens, time.Since(s.start))
	})
}

func (s *Stream) settleFailure(err error) error {
	out := err
	s.settleOnce.Do(func() {
		out = s.router.failCall(s.ctx, s.profile, s.messages, err)
	})
	return out
}
