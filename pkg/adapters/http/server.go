// Package http exposes a quill engine over a JSON HTTP API routed with chi.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/aretw0/quill/pkg/session"
	"github.com/aretw0/quill/pkg/state"
	"github.com/go-chi/chi/v5"
)

// Server holds the collaborators the handlers use.
type Server struct {
	refiner ports.Refiner
	store   ports.SessionStore
	locks   *session.Manager
	schema  schema.Schema
	streams *StreamManager
	metrics http.Handler
	logger  *slog.Logger
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithStore enables the session listing, inspection and deletion routes.
func WithStore(store ports.SessionStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithSessionManager serialises refine and resume calls per session ID.
// Its store also backs the session routes unless WithStore is given.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Server) {
		s.locks = m
	}
}

// WithSchema sets the schema reported by GET /schema.
func WithSchema(sch schema.Schema) Option {
	return func(s *Server) {
		s.schema = sch
	}
}

// WithStreams enables GET /sessions/{id}/events. The same manager's Hooks must be
// registered on the engine for events to flow.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the application version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler for refiner.
func NewHandler(refiner ports.Refiner, opts ...Option) http.Handler {
	s := &Server{
		refiner: refiner,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil && s.locks != nil {
		s.store = s.locks
	}
	if s.schema == nil {
		s.schema = state.DefaultSchema()
	}

	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/schema", s.GetSchema)
	r.Post("/parse", s.Parse)
	r.Post("/progress", s.Progress)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.Refine)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Get("/result", s.GetResult)
			r.Post("/resume", s.Resume)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

// withSession runs fn under the session lock when a manager is configured.
func (s *Server) withSession(ctx context.Context, id string, fn func(context.Context) error) error {
	if s.locks == nil || id == "" {
		return fn(ctx)
	}
	return s.locks.WithLock(ctx, id, fn)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
