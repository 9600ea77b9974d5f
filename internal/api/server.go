package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/roach88/knotter/internal/engine"
	"github.com/roach88/knotter/internal/scene"
)

// Events is the engine surface the server needs.
type Events interface {
	Insert(ctx context.Context, globe string, ev scene.BallEvent) (string, error)
	Delete(ctx context.Context, globe, uuid string) (string, error)
	Page(ctx context.Context, globe, cursor string) ([]scene.Transaction, error)
}

// Allocator hands out unused globe ids.
type Allocator interface {
	Allocate(ctx context.Context) (string, error)
}

// Server routes HTTP requests to the engine.
type Server struct {
	events  Events
	globes  Allocator
	logger  *slog.Logger
	metrics *Metrics
	limiter *RateLimiter
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit limits writes per client IP. A non-positive rps disables
// limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = NewRateLimiter(rps, burst)
	}
}

// WithMetrics sets the collectors. Default: a fresh NewMetrics().
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns a server over events and globes.
func New(events Events, globes Allocator, opts ...Option) *Server {
	s := &Server{
		events: events,
		globes: globes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /new_globe_id", s.handleNewGlobeID)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /{globeId}", s.handleInsert)
	mux.HandleFunc("DELETE /{globeId}/{uuid}", s.handleDelete)
	mux.HandleFunc("GET /{globeId}/{cursor}", s.handlePage)

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	h = withObservability(s.logger, s.metrics, h)
	s.handler = withRequestID(h)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func isClientError(err error) bool {
	return engine.IsClientError(err)
}
