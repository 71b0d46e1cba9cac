package router

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"agent-server/internal/apperrors"
	"agent-server/internal/domain/model"
	"agent-server/internal/domain/token"
	"agent-server/internal/domain/usage"
)

const redactedContentRunes = 64

// Options carries the dispatch knobs the router takes from configuration.
type Options struct {
	MaxRetries         int
	RequestTimeout     time.Duration
	DefaultMaxTokens   int
	DefaultTemperature float32
}

// ChatRequest describes one routed call. ModelType, when set, bypasses hint
// derivation.
type ChatRequest struct {
	Messages    []model.Message
	ModelType   model.ModelType
	TaskType    string
	Complexity  string
	Speed       string
	Temperature *float32
	MaxTokens   int
}

// Result is the normalized outcome of one successful call.
type Result struct {
	Content      string          `json:"content"`
	Model        string          `json:"model"`
	ModelType    model.ModelType `json:"model_type"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	CostUSD      decimal.Decimal `json:"cost_usd"`
	LatencyMS    int64           `json:"latency_ms"`
}

// Router selects a model profile per call, enforces token budgets before
// dispatch, issues calls through the provider abstraction, and keeps the
// usage ledger consistent on both success and failure paths. Stateless
// across calls.
type Router struct {
	registry *model.Registry
	counter  *token.Counter
	ledger   *usage.Ledger
	provider Provider
	retry    RetryConfig
	opts     Options
	log      zerolog.Logger
}

func New(registry *model.Registry, counter *token.Counter, ledger *usage.Ledger, provider Provider, opts Options, log zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		counter:  counter,
		ledger:   ledger,
		provider: provider,
		retry:    DefaultRetryConfig(opts.MaxRetries),
		opts:     opts,
		log:      log.With().Str("component", "router").Logger(),
	}
}

// SelectModel derives a model type from task hints using fixed precedence.
func SelectModel(taskType, complexity, speed string) model.ModelType {
	taskType = strings.ToLower(taskType)

	switch {
	case taskType == "embedding":
		return model.TypeEmbeddings
	case taskType == "vision" || strings.Contains(taskType, "image"):
		return model.TypeVision
	case taskType == "audio" || strings.Contains(taskType, "speech"):
		return model.TypeAudio
	case taskType == "reasoning" || complexity == "high":
		if speed == "fast" {
			return model.TypeFastReasoning
		}
		return model.TypeReasoning
	case complexity == "low" && speed == "fast":
		return model.TypeFastReasoning
	default:
		return model.TypeChat
	}
}

func (r *Router) resolveProfile(req ChatRequest) (model.Profile, error) {
	modelType := req.ModelType
	if modelType == "" {
		modelType = SelectModel(req.TaskType, req.Complexity, req.Speed)
	}
	return r.registry.ProfileFor(modelType)
}

// Chat runs the full call pipeline: profile resolution, budget validation,
// bounded-retry dispatch, and ledger accounting.
func (r *Router) Chat(ctx context.Context, req ChatRequest) (*Result, error) {
	profile, err := r.resolveProfile(req)
	if err != nil {
		return nil, err
	}

	// Budget violations abort before any dispatch and charge nothing.
	if err := r.counter.ValidateBudget(req.Messages, profile); err != nil {
		return nil, err
	}

	start := time.Now()
	completion, err := withRetry(ctx, r.retry, "chat_completion", func() (*Completion, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
		defer cancel()
		return r.provider.Complete(callCtx, r.completionRequest(profile, req))
	})
	if err != nil {
		return nil, r.failCall(ctx, profile, req.Messages, err)
	}

	latency := time.Since(start)
	inputTokens, outputTokens := r.resolveTokenCounts(completion, req.Messages)
	r.ledger.RecordSuccess(profile, inputTokens, outputTokens, latency)

	return &Result{
		Content:      completion.Content,
		Model:        profile.Name,
		ModelType:    profile.Type,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      profile.Cost(inputTokens, outputTokens),
		LatencyMS:    latency.Milliseconds(),
	}, nil
}

// Embed generates embeddings through the embeddings profile. Single
// round-trip; input tokens are accounted from the accountant's estimate
// since the abstraction reports none.
func (r *Router) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	profile, err := r.registry.ProfileFor(model.TypeEmbeddings)
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(texts))
	for _, text := range texts {
		messages = append(messages, model.Message{Role: model.RoleUser, Content: text})
	}
	if err := r.counter.ValidateBudget(messages, profile); err != nil {
		return nil, err
	}

	start := time.Now()
	vectors, err := withRetry(ctx, r.retry, "embeddings", func() ([][]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
		defer cancel()
		return r.provider.Embed(callCtx, profile.Deployment, texts)
	})
	if err != nil {
		return nil, r.failCall(ctx, profile, messages, err)
	}

	r.ledger.RecordSuccess(profile, r.counter.CountMessages(messages), 0, time.Since(start))
	return vectors, nil
}

// AnalyzeImage routes a base64 image plus prompt through the vision profile.
func (r *Router) AnalyzeImage(ctx context.Context, imageB64, prompt string) (*Result, error) {
	if prompt == "" {
		prompt = "Analyze this image and describe what you see."
	}

	messages := []model.Message{{
		Role: model.RoleUser,
		Parts: []model.ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: "data:image/jpeg;base64," + imageB64},
		},
	}}

	return r.Chat(ctx, ChatRequest{Messages: messages, ModelType: model.TypeVision})
}

func (r *Router) completionRequest(profile model.Profile, req ChatRequest) CompletionRequest {
	temperature := r.opts.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.opts.DefaultMaxTokens
	}
	return CompletionRequest{
		Deployment:  profile.Deployment,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// resolveTokenCounts prefers provider-reported usage and falls back to the
// accountant's estimate when the provider reports nothing.
func (r *Router) resolveTokenCounts(completion *Completion, messages []model.Message) (int, int) {
	inputTokens := completion.InputTokens
	if inputTokens <= 0 {
		inputTokens = r.counter.CountMessages(messages)
	}
	outputTokens := completion.OutputTokens
	if outputTokens <= 0 {
		outputTokens = r.counter.Count(completion.Content)
	}
	return inputTokens, outputTokens
}

// failCall translates a dispatch failure into the error taxonomy. An aborted
// call records nothing; a genuine provider failure counts exactly one error
// against the profile.
func (r *Router) failCall(ctx context.Context, profile model.Profile, messages []model.Message, err error) error {
	if ctx.Err() != nil {
		return err
	}

	r.ledger.RecordFailure(profile.Type)
	r.log.Error().Err(err).Str("model", profile.Name).Msg("provider call failed")

	if classify(err) == kindRateLimit {
		return &apperrors.RateLimitError{Backend: profile.Deployment, Err: err}
	}
	return &apperrors.InferenceError{
		Model:           profile.Name,
		Detail:          err.Error(),
		RedactedContext: redactMessages(messages),
		Err:             err,
	}
}

// redactMessages copies the offending input for diagnostics with content
// truncated, so error payloads never carry full message bodies.
func redactMessages(messages []model.Message) map[string]any {
	redacted := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		if content == "" && len(msg.Parts) > 0 {
			for _, part := range msg.Parts {
				if part.Type == "text" {
					content = part.Text
					break
				}
			}
		}
		runes := []rune(content)
		if len(runes) > redactedContentRunes {
			content = string(runes[:redactedContentRunes]) + "..."
		}
		redacted = append(redacted, map[string]string{"role": msg.Role, "content": content})
	}
	return map[string]any{"messages": redacted}
}
