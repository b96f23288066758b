// Package http provides the HTTP status API.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/byoc/internal/adapters/metrics"
	"github.com/jobrunner/byoc/internal/application"
	"github.com/jobrunner/byoc/internal/config"
	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/input"
)

// Ingestion is the part of the ingestion service exposed over HTTP.
type Ingestion interface {
	input.IngestionService

	// Plan returns the tiles an ingest would submit.
	Plan(ctx context.Context) ([]domain.TileRecord, error)

	// CollectionID returns the configured collection.
	CollectionID() string
}

// Syncer triggers an ingestion run on demand.
type Syncer interface {
	TriggerSync(ctx context.Context) (application.SyncResult, error)
}

// Dependencies holds the services the server exposes. Sync and Metrics are
// optional.
type Dependencies struct {
	Ingestion   Ingestion
	Health      input.HealthChecker
	Sync        Syncer
	Metrics     *metrics.Collector
	MetricsPath string
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server    *http.Server
	router    *mux.Router
	ingestion Ingestion
	health    input.HealthChecker
	sync      Syncer
	metrics   *metrics.Collector
	logger    *slog.Logger
	config    config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, deps Dependencies, logger *slog.Logger) *Server {
	s := &Server{
		ingestion: deps.Ingestion,
		health:    deps.Health,
		sync:      deps.Sync,
		metrics:   deps.Metrics,
		logger:    logger,
		config:    cfg,
	}

	s.router = s.setupRoutes(deps.MetricsPath)

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(metricsPath string) *mux.Router {
	r := mux.NewRouter()

	// Add middleware
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	// Add CORS middleware if configured
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/plan", s.handlePlan).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)

	// Sync endpoint (only if sync service is configured)
	if s.sync != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost, http.MethodOptions)
	}

	// OpenAPI spec
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)

	if s.metrics != nil && metricsPath != "" {
		r.Handle(metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
