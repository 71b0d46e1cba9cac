package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"agent-server/internal/config"
	"agent-server/internal/domain/router"
	"agent-server/internal/domain/session"
	"agent-server/internal/domain/usage"
	"agent-server/internal/infrastructure/metrics"
)

// HTTPServer is the single HTTP entry point over the orchestration and
// session core.
type HTTPServer struct {
	engine   *gin.Engine
	chat     *ChatHandler
	sessions *SessionHandler
	usage    *UsageHandler
	store    *session.Store
	config   *config.Config
}

func NewHTTPServer(
	modelRouter *router.Router,
	store *session.Store,
	ledger *usage.Ledger,
	cfg *config.Config,
	log zerolog.Logger,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	server := &HTTPServer{
		engine:   gin.New(),
		chat:     NewChatHandler(modelRouter, store, log),
		sessions: NewSessionHandler(store),
		usage:    NewUsageHandler(ledger),
		store:    store,
		config:   cfg,
	}

	server.engine.Use(gin.Recovery())
	server.engine.Use(metricsMiddleware())

	server.engine.GET("/healthz", server.handleHealth)
	server.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := server.engine.Group("/v1")
	{
		v1.POST("/chat", server.chat.HandleChat)
		v1.POST("/embeddings", server.chat.HandleEmbeddings)
		v1.POST("/images/analyze", server.chat.HandleImageAnalyze)

		v1.POST("/sessions", server.sessions.HandleCreate)
		v1.GET("/sessions/:id", server.sessions.HandleGet)
		v1.PATCH("/sessions/:id", server.sessions.HandleUpdate)
		v1.DELETE("/sessions/:id", server.sessions.HandleDelete)

		v1.GET("/usage", server.usage.HandleSnapshot)
	}

	return server
}

func (s *HTTPServer) Run() error {
	return s.engine.Run(fmt.Sprintf(":%d", s.config.HTTPPort))
}

// Handler exposes the engine for callers that own the http.Server lifecycle.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	if err := s.store.Healthy(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(
			c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.RequestDuration.WithLabelValues(
			c.Request.Method, endpoint,
		).Observe(time.Since(start).Seconds())
	}
}
