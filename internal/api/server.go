package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/settings"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, st domain.Store, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, statsSvc *stats.Service, registry *settings.Registry, version string) *Server {
	handler := NewHandler(st, cache, bus, eng, statsSvc, registry, version)
	router := chi.NewRouter()

	// Global middleware stack. Tracing runs before recover so panic
	// logs carry the request id.
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(BodyLimitMiddleware)    // Bound payload size
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Scoring
	router.Post("/score", handler.Score)
	router.Post("/score/legacy", handler.ScoreLegacy)

	// Simulation
	router.Post("/simulation/batch", handler.RunBatch)
	router.Get("/simulation/overlay", handler.Overlay)
	router.Delete("/simulation/overlay", handler.ResetOverlay)

	// Stored records
	router.Get("/transactions", handler.ListTransactions)
	router.Get("/transactions/{id}", handler.GetTransaction)
	router.Get("/decisions", handler.ListDecisions)
	router.Get("/decisions/{id}", handler.GetDecision)

	// Statistics
	router.Get("/stats/fraud", handler.FraudStats)
	router.Get("/stats/channels", handler.ChannelStats)
	router.Get("/stats/hourly", handler.HourlyStats)

	// Settings
	router.Get("/settings", handler.GetSettings)
	router.Get("/settings/{section}", handler.GetSettingsSection)
	router.Put("/settings/{section}", handler.UpdateSettings)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
