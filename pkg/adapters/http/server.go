// Package http exposes the conversation engine over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ordercopilot/lattice/internal/logging"
	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/session"
)

// maxMessageBytes bounds inbound chat messages.
const maxMessageBytes = 8 << 10

// Engine is the executor surface the server depends on.
type Engine interface {
	Step(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)
}

// Server routes chat and conversation management requests to the engine.
type Server struct {
	engine   Engine
	sessions *session.Manager
	logger   *slog.Logger
	metrics  http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsHandler mounts a handler at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewHandler builds the HTTP handler.
func NewHandler(engine Engine, sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		engine:   engine,
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.chat)
		r.Get("/conversations", s.listConversations)
		r.Get("/conversations/{id}", s.getConversation)
		r.Delete("/conversations/{id}", s.deleteConversation)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	body := http.MaxBytesReader(w, r.Body, maxMessageBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("chat: invalid request body", "error", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.HumanInput) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	resp, err := s.engine.Step(r.Context(), req)
	if err != nil {
		http.Error(w, "Turn failed", http.StatusInternalServerError)
		s.logger.Error("chat: turn failed", "conversation_id", req.ConversationID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		s.logger.Error("list conversations failed", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": ids})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.sessions.Load(r.Context(), id)
	if errors.Is(err, domain.ErrConversationNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		s.logger.Error("get conversation failed", "conversation_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete conversation", http.StatusInternalServerError)
		s.logger.Error("delete conversation failed", "conversation_id", id, "error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
