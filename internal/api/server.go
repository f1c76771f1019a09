// Package api provides the HTTP server and handlers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hul1hu/mediadrive/internal/auth"
	"github.com/hul1hu/mediadrive/internal/graph"
	"github.com/hul1hu/mediadrive/internal/history"
	"github.com/hul1hu/mediadrive/internal/logging"
	"github.com/hul1hu/mediadrive/internal/metrics"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "OneDrive File Explorer API"

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// HistoryStore is the subset of the history store the handlers need.
type HistoryStore interface {
	UpsertUser(ctx context.Context, u history.User) error
	Append(ctx context.Context, userID, itemID, name string) error
	List(ctx context.Context, userID string) ([]history.Entry, error)
}

// Server is the HTTP server.
type Server struct {
	graph       *graph.Client
	gateway     *auth.Gateway
	store       HistoryStore
	frontendURL string
}

// NewServer creates a new server.
func NewServer(graphClient *graph.Client, gateway *auth.Gateway, store HistoryStore, frontendURL string) *Server {
	return &Server{
		graph:       graphClient,
		gateway:     gateway,
		store:       store,
		frontendURL: frontendURL,
	}
}

// Handler returns the HTTP handler with CORS, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(corsMiddleware)
	r.Use(logging.Middleware)
	r.Use(metrics.Middleware)
	r.Use(s.recoverer)

	// Public endpoints
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/auth/login", s.handleLogin)
	r.Get("/api/auth/callback", s.handleCallback)

	// Protected endpoints: bearer header or token query parameter
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(s.unauthorized))

		r.Get("/api/explorer/browse", s.handleBrowse)
		r.Get("/api/explorer/search", s.handleSearch)

		// Legacy flat-list variants
		r.Get("/api/files", s.handleLegacyFiles)
		r.Get("/api/files/all", s.handleLegacyFiles)
		r.Get("/api/files/search", s.handleSearch)

		r.Get("/api/stream/{id}", s.handleStream)
		r.Get("/api/thumbnail/{id}", s.handleThumbnail)
		r.Get("/api/subtitles/{id}", s.handleSubtitles)
		r.Get("/api/subtitle-content/{id}", s.handleSubtitleContent)

		r.Get("/api/watch-history", s.handleGetWatchHistory)
		r.Post("/api/watch-history", s.handleAddWatchHistory)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	s.sendError(w, http.StatusUnauthorized, "Authorization required")
}

// corsMiddleware sets permissive CORS headers on every response and
// answers preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns panics into the JSON 500 shape the frontend expects.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error("panic recovered",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
				)
				s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
					Error:   "Internal Server Error",
					Message: fmt.Sprint(rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
