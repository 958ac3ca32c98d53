package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/parser"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies; drafts and materials are plain text.
const maxBodyBytes = 4 << 20

// RefineRequest is the body of POST /sessions.
type RefineRequest struct {
	SessionID string `json:"session_id,omitempty"`
	domain.Inputs
}

type errorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// Refine handles POST /sessions.
func (s *Server) Refine(w http.ResponseWriter, r *http.Request) {
	var body RefineRequest
	if !s.decode(w, r, &body) {
		return
	}

	var res domain.Result
	err := s.withSession(r.Context(), body.SessionID, func(ctx context.Context) error {
		var err error
		res, err = s.refiner.Refine(ctx, body.SessionID, body.Inputs)
		return err
	})
	s.writeOutcome(w, "Refine", res, err)
}

// Resume handles POST /sessions/{id}/resume.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var res domain.Result
	err := s.withSession(r.Context(), id, func(ctx context.Context) error {
		var err error
		res, err = s.refiner.Resume(ctx, id)
		return err
	})
	s.writeOutcome(w, "Resume", res, err)
}

// GetResult handles GET /sessions/{id}/result.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.refiner.Result(r.Context(), chi.URLParam(r, "id"))
	s.writeOutcome(w, "Result", res, err)
}

// writeOutcome maps engine errors to status codes. A result, when there is one, is
// always sent as the body.
func (s *Server) writeOutcome(w http.ResponseWriter, op string, res domain.Result, err error) {
	var agg *schema.AggregateError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, res)
	case errors.As(err, new(*domain.MissingDataError)):
		s.writeJSON(w, http.StatusUnprocessableEntity, res)
	case errors.As(err, &agg):
		resp := errorResponse{Error: "invalid session values"}
		for _, e := range agg.Errors {
			resp.Errors = append(resp.Errors, e.Error())
		}
		s.writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, domain.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrSessionComplete):
		s.writeJSON(w, http.StatusConflict, res)
	default:
		s.logger.Error(op+" failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("List sessions failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	st, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("Load session failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logger.Error("Delete session failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Parse handles POST /parse.
func (s *Server) Parse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text *string `json:"text"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Text == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, parser.Parse(*body.Text))
}

// Progress handles POST /progress.
func (s *Server) Progress(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if !s.decode(w, r, &values) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.refiner.Check(r.Context(), values))
}

// GetSchema handles GET /schema.
func (s *Server) GetSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.schema)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	} else if err != nil {
		s.logger.Error("OpenAPI document unavailable", "err", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "quill-http",
		"version":     strings.TrimSpace(s.version),
		"api_version": apiVersion,
	})
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("event streaming is not enabled"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE: client subscribed", "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("no session store configured"))
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
