package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agent-server/internal/domain/session"
)

// SessionHandler serves session CRUD over the store.
type SessionHandler struct {
	store *session.Store
}

func NewSessionHandler(store *session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

type createSessionRequest struct {
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context"`
}

type updateSessionRequest struct {
	Messages []session.Message `json:"messages"`
	Context  map[string]any    `json:"context"`
	State    *string           `json:"conversation_state"`
}

func (h *SessionHandler) HandleCreate(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if req.SessionID != "" && h.store.Has(ctx, req.SessionID) {
		c.JSON(http.StatusConflict, gin.H{"error": "session already exists"})
		return
	}

	record, err := h.store.Create(ctx, req.SessionID, req.Context)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *SessionHandler) HandleGet(c *gin.Context) {
	record, ok := h.store.Get(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *SessionHandler) HandleUpdate(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.store.Update(c.Request.Context(), c.Param("id"), session.Patch{
		Messages: req.Messages,
		Context:  req.Context,
		State:    req.State,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *SessionHandler) HandleDelete(c *gin.Context) {
	existed, err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
