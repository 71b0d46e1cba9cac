package router

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-server/internal/apperrors"
	"agent-server/internal/domain/model"
)

type scriptedStream struct {
	chunks []Chunk
	err    error
	closed bool
}

func (s *scriptedStream) Recv() (Chunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func TestChatStreamAccountsOnceAtEOF(t *testing.T) {
	inner := &scriptedStream{chunks: []Chunk{
		{Content: "Hel"},
		{Content: "lo"},
		{InputTokens: 12, OutputTokens: 4}, // usage arrives on the final chunk
	}}
	p := &fakeProvider{stream: inner}
	r, ledger := newTestRouter(t, p)

	stream, err := r.ChatStream(context.Background(), ChatRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var content string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content += chunk.Content
	}
	assert.Equal(t, "Hello", content)

	// Close after EOF must not account a second time.
	require.NoError(t, stream.Close())
	assert.True(t, inner.closed)

	stats, _ := ledger.Snapshot(model.TypeChat)
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(12), stats.TotalTokensInput)
	assert.Equal(t, int64(4), stats.TotalTokensOutput)
}

func TestChatStreamAbandonedSettlesOnClose(t *testing.T) {
	inner := &scriptedStream{chunks: []Chunk{{Content: "partial answer text"}}}
	p := &fakeProvider{stream: inner}
	r, ledger := newTestRouter(t, p)

	stream, err := r.ChatStream(context.Background(), ChatRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	stats, _ := ledger.Snapshot(model.TypeChat)
	assert.Equal(t, int64(1), stats.TotalRequests, "abandoned streams settle with observed counts")
	assert.Greater(t, stats.TotalTokensOutput, int64(0))
}

func TestChatStreamFailureRecordsOneError(t *testing.T) {
	inner := &scriptedStream{
		chunks: []Chunk{{Content: "beginning"}},
		err:    &ProviderError{StatusCode: 500, Message: "stream broke"},
	}
	p := &fakeProvider{stream: inner}
	r, ledger := newTestRouter(t, p)

	stream, err := r.ChatStream(context.Background(), ChatRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)

	_, err = stream.Recv()
	var inference *apperrors.InferenceError
	require.ErrorAs(t, err, &inference)

	stats, _ := ledger.Snapshot(model.TypeChat)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.Equal(t, int64(0), stats.TotalRequests)
}

func TestChatStreamNonStreamingProfileFallsBackToChat(t *testing.T) {
	inner := &scriptedStream{}
	p := &fakeProvider{stream: inner}
	r, _ := newTestRouter(t, p)

	stream, err := r.ChatStream(context.Background(), ChatRequest{
		Messages:  []model.Message{{Role: model.RoleUser, Content: "hi"}},
		ModelType: model.TypeReasoning, // does not support streaming
	})
	require.NoError(t, err)
	assert.Equal(t, model.TypeChat, stream.Profile().Type)
}
