package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hul1hu/mediadrive/internal/auth"
	"github.com/hul1hu/mediadrive/internal/history"
	"github.com/hul1hu/mediadrive/internal/logging"
	"github.com/hul1hu/mediadrive/internal/metrics"
)

// handleGetWatchHistory lists the caller's most recent playback events.
// The user is resolved from the bearer token via the Graph profile; a
// failed profile fetch means the token is no good.
func (s *Server) handleGetWatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := s.graph.Me(ctx, auth.TokenFrom(ctx))
	if err != nil {
		s.sendError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	entries, err := s.store.List(ctx, user.ID)
	if err != nil {
		logging.Error("watch history list failed", zap.String("user_id", user.ID), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "Failed to get watch history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string][]history.Entry{"watch_history": entries})
}

// handleAddWatchHistory appends one playback event. This is a log, not a
// "last watched" pointer: repeat plays produce repeat rows.
func (s *Server) handleAddWatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		ItemID string `json:"item_id"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.graph.Me(ctx, auth.TokenFrom(ctx))
	if err != nil {
		s.sendError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := s.store.Append(ctx, user.ID, req.ItemID, req.Name); err != nil {
		logging.Error("watch history append failed", zap.String("user_id", user.ID), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "Failed to update watch history")
		return
	}

	metrics.RecordWatchHistoryAppend()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
