// Package api exposes the teamsync core over HTTP using chi.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/teamsync/pkg/teamsync"
	"github.com/tendant/teamsync/pkg/teamsync/metrics"
)

const greeting = "Hello this message is coming from the teamsync server"

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string `json:"status"`
	TrackedClients int    `json:"tracked_clients"`
}

// Server wires the position registry and asset store to HTTP routes
type Server struct {
	registry       *teamsync.PositionRegistry
	assets         *teamsync.AssetStore
	metrics        *metrics.Metrics
	requestTimeout time.Duration
	maxUploadBytes int64
	requestLogging bool
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithMetrics sets the collectors used by the handlers
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRequestTimeout sets the per-request timeout
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

// WithMaxUploadBytes caps the body of one upload request
func WithMaxUploadBytes(n int64) ServerOption {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

// WithRequestLogging toggles chi's request logger
func WithRequestLogging(enabled bool) ServerOption {
	return func(s *Server) {
		s.requestLogging = enabled
	}
}

// NewServer creates a new HTTP server wrapper
func NewServer(registry *teamsync.PositionRegistry, assets *teamsync.AssetStore, opts ...ServerOption) *Server {
	s := &Server{
		registry:       registry,
		assets:         assets,
		requestTimeout: 60 * time.Second,
		maxUploadBytes: 32 << 20,
		requestLogging: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.requestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/", s.handleGreeting)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	NewPositionsHandler(s.registry, s.metrics).RegisterRoutes(r)
	NewAssetsHandler(s.assets, s.metrics, s.maxUploadBytes).RegisterRoutes(r)

	return r
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(greeting))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:         "healthy",
		TrackedClients: s.registry.Len(),
	})
}
