package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"agent-server/internal/config"
	"agent-server/internal/domain/model"
	"agent-server/internal/domain/router"
)

// Client implements router.Provider on top of an OpenAI-compatible backend.
// One client is built at startup and shared by all in-flight requests.
type Client struct {
	api *openai.Client
}

func NewClient(cfg *config.Config) *Client {
	apiCfg := openai.DefaultAzureConfig(cfg.OpenAIAPIKey, cfg.OpenAIEndpoint)
	apiCfg.APIVersion = cfg.OpenAIAPIVersion
	return &Client{api: openai.NewClientWithConfig(apiCfg)}
}

func (c *Client) Complete(ctx context.Context, req router.CompletionRequest) (*router.Completion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.chatRequest(req, false))
	if err != nil {
		return nil, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &router.ProviderError{Message: "provider returned no choices"}
	}

	return &router.Completion{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *Client) CompleteStream(ctx context.Context, req router.CompletionRequest) (router.ChunkStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.chatRequest(req, true))
	if err != nil {
		return nil, translateError(err)
	}
	return &chunkStream{inner: stream}, nil
}

func (c *Client) Embed(ctx context.Context, deployment string, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(deployment),
	})
	if err != nil {
		return nil, translateError(err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

func (c *Client) chatRequest(req router.CompletionRequest, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:       req.Deployment,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return out
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted := openai.ChatCompletionMessage{Role: msg.Role}
		if len(msg.Parts) == 0 {
			converted.Content = msg.Content
		} else {
			for _, part := range msg.Parts {
				switch part.Type {
				case "image_url":
					converted.MultiContent = append(converted.MultiContent, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    part.ImageURL,
							Detail: openai.ImageURLDetailHigh,
						},
					})
				default:
					converted.MultiContent = append(converted.MultiContent, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeText,
						Text: part.Text,
					})
				}
			}
		}
		out = append(out, converted)
	}
	return out
}

// chunkStream adapts the go-openai stream to the router's chunk contract.
type chunkStream struct {
	inner *openai.ChatCompletionStream
}

func (s *chunkStream) Recv() (router.Chunk, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return router.Chunk{}, io.EOF
		}
		return router.Chunk{}, translateError(err)
	}

	chunk := router.Chunk{}
	if len(resp.Choices) > 0 {
		chunk.Content = resp.Choices[0].Delta.Content
	}
	// The usage payload arrives on the final chunk when IncludeUsage is set.
	if resp.Usage != nil {
		chunk.InputTokens = resp.Usage.PromptTokens
		chunk.OutputTokens = resp.Usage.CompletionTokens
	}
	return chunk, nil
}

func (s *chunkStream) Close() error {
	return s.inner.Close()
}

// translateError converts go-openai failures into the structured payload the
// router classifies. Errors without an API shape keep their message for the
// router's string-heuristic fallback.
func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &router.ProviderError{
			StatusCode: apiErr.HTTPStatusCode,
			Code:       fmt.Sprint(apiErr.Code),
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &router.ProviderError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Err:        err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &router.ProviderError{Message: err.Error(), Err: err}
}
