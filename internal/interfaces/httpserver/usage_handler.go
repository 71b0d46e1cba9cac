package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agent-server/internal/domain/model"
	"agent-server/internal/domain/usage"
)

// UsageHandler exposes ledger snapshots.
type UsageHandler struct {
	ledger *usage.Ledger
}

func NewUsageHandler(ledger *usage.Ledger) *UsageHandler {
	return &UsageHandler{ledger: ledger}
}

func (h *UsageHandler) HandleSnapshot(c *gin.Context) {
	if modelType := c.Query("model_type"); modelType != "" {
		stats, ok := h.ledger.Snapshot(model.ModelType(modelType))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown model type"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"model_type": modelType,
			"stats":      stats,
			"error_rate": stats.ErrorRate(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"usage": h.ledger.SnapshotAll()})
}
