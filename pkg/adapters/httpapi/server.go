// Package httpapi exposes the pipeline over HTTP. Run and resume stream
// their events as server-sent events; history and health are plain JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
)

// Pipeline is the part of the engine the transport drives.
type Pipeline interface {
	Run(ctx context.Context, threadID string, input graph.RunInput) (<-chan domain.Event, error)
	Resume(ctx context.Context, threadID string, resume domain.Resume) (<-chan domain.Event, error)
	History(ctx context.Context, threadID string) (*domain.State, error)
}

// Server handles the chat API.
type Server struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger for request handling.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates the HTTP facade over the pipeline.
func NewServer(pipeline Pipeline, opts ...Option) *Server {
	s := &Server{pipeline: pipeline, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/chat", s.handleChat)
	r.Post("/chat/resume", s.handleResume)
	r.Get("/chat/history/{threadID}", s.handleHistory)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type chatRequest struct {
	ThreadID        string          `json:"thread_id"`
	UserID          string          `json:"user_id"`
	Content         string          `json:"content"`
	RichText        json.RawMessage `json:"rich_text,omitempty"`
	Action          string          `json:"action,omitempty"`
	EnableWebSearch bool            `json:"enable_web_search"`
	SetID           string          `json:"set_id,omitempty"`
	ExplicitDocIDs  []string        `json:"explicit_doc_ids,omitempty"`
}

type resumeRequest struct {
	ThreadID string `json:"thread_id"`
	// Value null means the user dismissed the prompt.
	Value *string `json:"value"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ThreadID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "thread_id and user_id are required")
		return
	}
	if req.Content == "" && len(req.RichText) == 0 {
		writeError(w, http.StatusBadRequest, "content or rich_text is required")
		return
	}

	events, err := s.pipeline.Run(r.Context(), req.ThreadID, graph.RunInput{
		UserID:          req.UserID,
		Content:         req.Content,
		RichText:        req.RichText,
		Action:          domain.Action(req.Action),
		EnableWebSearch: req.EnableWebSearch,
		SetID:           req.SetID,
		ExplicitDocIDs:  req.ExplicitDocIDs,
	})
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.stream(w, r, events)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	resume := domain.Cancel()
	if req.Value != nil {
		resume = domain.Resume{Value: *req.Value}
	}

	events, err := s.pipeline.Resume(r.Context(), req.ThreadID, resume)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.stream(w, r, events)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	state, err := s.pipeline.History(r.Context(), threadID)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": state.ThreadID,
		"messages":  state.Messages,
		"pending":   state.Pending,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// stream writes the run's events as server-sent events. The suspension,
// response, and error events double as the stream terminator.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, events <-chan domain.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Tell buffering reverse proxies to pass events through as they come.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("event marshal failed", "err", err)
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "thread not found")
	case errors.Is(err, domain.ErrNoPendingSuspension):
		writeError(w, http.StatusBadRequest, "thread has no pending question to resume")
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
