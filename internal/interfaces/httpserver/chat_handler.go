package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"agent-server/internal/apperrors"
	"agent-server/internal/domain/model"
	"agent-server/internal/domain/router"
	"agent-server/internal/domain/session"
	"agent-server/internal/infrastructure/metrics"
)

// ChatHandler serves the model-facing endpoints: chat (plain and streamed),
// embeddings, and image analysis.
type ChatHandler struct {
	router *router.Router
	store  *session.Store
	log    zerolog.Logger
}

func NewChatHandler(modelRouter *router.Router, store *session.Store, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		router: modelRouter,
		store:  store,
		log:    log.With().Str("component", "chat_handler").Logger(),
	}
}

type chatRequest struct {
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message" binding:"required"`
	ModelType   string   `json:"model_type"`
	TaskType    string   `json:"task_type"`
	Complexity  string   `json:"complexity"`
	Speed       string   `json:"speed"`
	Stream      bool     `json:"stream"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

type embeddingsRequest struct {
	Texts []string `json:"texts" binding:"required,min=1"`
}

type imageAnalyzeRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	Prompt      string `json:"prompt"`
}

func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	// Sessions are created on first reference to an unknown id.
	var record *session.Record
	if req.SessionID != "" {
		var err error
		record, err = h.store.GetOrCreate(ctx, req.SessionID)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	messages := historyMessages(record)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: req.Message})

	routeReq := router.ChatRequest{
		Messages:    messages,
		ModelType:   model.ModelType(req.ModelType),
		TaskType:    req.TaskType,
		Complexity:  req.Complexity,
		Speed:       req.Speed,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if req.Stream {
		h.streamChat(c, routeReq, record, req.Message)
		return
	}

	result, err := h.router.Chat(ctx, routeReq)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.TokensInputTotal.WithLabelValues(result.Model).Add(float64(result.InputTokens))
	metrics.TokensOutputTotal.WithLabelValues(result.Model).Add(float64(result.OutputTokens))

	response := gin.H{"result": result}
	if record != nil {
		response["session_id"] = record.ID
		if err := h.persistTurn(c, record.ID, req.Message, result.Content); err != nil {
			// The computed result is not lost; the caller sees both it and
			// the persistence failure.
			response["session_error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *ChatHandler) streamChat(c *gin.Context, routeReq router.ChatRequest, record *session.Record, userMessage string) {
	stream, err := h.router.ChatStream(c.Request.Context(), routeReq)
	if err != nil {
		respondError(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	var assembled strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.SSEvent("error", gin.H{"error": err.Error()})
			c.Writer.Flush()
			return
		}
		if chunk.Content != "" {
			assembled.WriteString(chunk.Content)
			c.SSEvent("chunk", gin.H{"content": chunk.Content})
			c.Writer.Flush()
		}
	}

	done := gin.H{"model": stream.Profile().Name}
	if record != nil {
		done["session_id"] = record.ID
		if err := h.persistTurn(c, record.ID, userMessage, assembled.String()); err != nil {
			done["session_error"] = err.Error()
		}
	}
	c.SSEvent("done", done)
	c.Writer.Flush()
}

func (h *ChatHandler) HandleEmbeddings(c *gin.Context) {
	var req embeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vectors, err := h.router.Embed(c.Request.Context(), req.Texts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"embeddings": vectors})
}

func (h *ChatHandler) HandleImageAnalyze(c *gin.Context) {
	var req imageAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.router.AnalyzeImage(c.Request.Context(), req.ImageBase64, req.Prompt)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.TokensInputTotal.WithLabelValues(result.Model).Add(float64(result.InputTokens))
	metrics.TokensOutputTotal.WithLabelValues(result.Model).Add(float64(result.OutputTokens))
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// persistTurn writes the user and assistant messages back to the session.
func (h *ChatHandler) persistTurn(c *gin.Context, sessionID, userMessage, assistantMessage string) error {
	ok, err := h.store.Update(c.Request.Context(), sessionID, session.Patch{
		Messages: []session.Message{
			{Role: model.RoleUser, Content: userMessage},
			{Role: model.RoleAssistant, Content: assistantMessage},
		},
	})
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist conversation turn")
		return err
	}
	if !ok {
		// Reaped between the read and the write; last-writer-wins applies.
		h.log.Warn().Str("session_id", sessionID).Msg("session vanished before turn could be persisted")
	}
	return nil
}

func historyMessages(record *session.Record) []model.Message {
	if record == nil {
		return nil
	}
	out := make([]model.Message, 0, len(record.Messages)+1)
	for _, msg := range record.Messages {
		out = append(out, model.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// respondError maps taxonomy errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)

	var inference *apperrors.InferenceError
	if errors.As(err, &inference) {
		metrics.ProviderErrorsTotal.WithLabelValues(inference.Model, "inference").Inc()
	}
	var rateLimit *apperrors.RateLimitError
	if errors.As(err, &rateLimit) {
		metrics.ProviderErrorsTotal.WithLabelValues(rateLimit.Backend, "rate_limit").Inc()
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
