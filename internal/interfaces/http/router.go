package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/interfaces/http/handlers"
	"github.com/turtacn/opinion-miner/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware dependencies of the
// route tree.  Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Mode string

	// Handlers
	OpinionHandler  *handlers.OpinionHandler
	DocumentHandler *handlers.DocumentHandler
	HealthHandler   *handlers.HealthHandler

	// Infrastructure
	Logger         logging.Logger
	HTTPMetrics    middleware.HTTPMetrics
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()

	// --- Global middleware ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}

	// --- Probes and metrics ---
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	// --- API v1 ---
	api := r.Group("/api/v1")
	if h := cfg.OpinionHandler; h != nil {
		api.POST("/opinions", h.Annotate)
	}
	if h := cfg.DocumentHandler; h != nil {
		docs := api.Group("/documents")
		docs.POST("/submit", h.Submit)
		docs.POST("/process", h.Process)
	}
	return r
}
