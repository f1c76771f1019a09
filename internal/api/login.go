package api

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/hul1hu/mediadrive/internal/history"
	"github.com/hul1hu/mediadrive/internal/logging"
	"github.com/hul1hu/mediadrive/internal/metrics"
)

// handleLogin returns the authorize URL as JSON rather than redirecting
// server-side, so the browser performs the navigation itself.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.gateway.AuthCodeURL()
	if err != nil {
		logging.Error("failed to build authorize URL", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"auth_url": authURL})
}

// handleCallback finishes the authorization-code flow. Every failure
// redirects the browser back to the frontend with a distinguishing error
// marker; the UI is the sole consumer of failure state here.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		metrics.RecordAuthCallback("missing_code")
		s.redirectWithError(w, r, "authentication_failed")
		return
	}

	if err := s.gateway.VerifyState(q.Get("state")); err != nil {
		logging.Warn("callback state rejected", zap.Error(err))
		metrics.RecordAuthCallback("bad_state")
		s.redirectWithError(w, r, "authentication_failed")
		return
	}

	token, err := s.gateway.Exchange(ctx, code)
	if err != nil {
		logging.Error("token exchange failed", zap.Error(err))
		metrics.RecordAuthCallback("exchange_failed")
		s.redirectWithError(w, r, "token_exchange_failed")
		return
	}
	if token.AccessToken == "" {
		metrics.RecordAuthCallback("no_access_token")
		s.redirectWithError(w, r, "no_access_token")
		return
	}

	// Profile fetch and user upsert are best-effort: a hiccup here must
	// not cost the user an otherwise valid login.
	if user, err := s.graph.Me(ctx, token.AccessToken); err != nil {
		logging.Warn("profile fetch after login failed", zap.Error(err))
	} else if err := s.store.UpsertUser(ctx, history.User{
		ID:    user.ID,
		Name:  user.DisplayName,
		Email: user.Email(),
	}); err != nil {
		logging.Error("user upsert failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	metrics.RecordAuthCallback("success")
	http.Redirect(w, r,
		s.frontendURL+"?access_token="+url.QueryEscape(token.AccessToken),
		http.StatusFound)
}

func (s *Server) redirectWithError(w http.ResponseWriter, r *http.Request, marker string) {
	http.Redirect(w, r, s.frontendURL+"?error="+marker, http.StatusFound)
}
