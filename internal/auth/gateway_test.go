package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testGateway() *Gateway {
	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TenantID:     "common",
		RedirectURI:  "http://localhost:8080/api/auth/callback",
		StateSecret:  "test-secret",
	})
}

func TestAuthCodeURL(t *testing.T) {
	g := testGateway()

	raw, err := g.AuthCodeURL()
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorize URL: %v", err)
	}
	q := u.Query()

	if u.Host != "login.microsoftonline.com" {
		t.Errorf("expected Azure AD host, got %q", u.Host)
	}
	if !strings.Contains(u.Path, "/common/") {
		t.Errorf("expected tenant in path, got %q", u.Path)
	}
	if q.Get("client_id") != "client-id" {
		t.Errorf("expected client_id, got %q", q.Get("client_id"))
	}
	if q.Get("response_mode") != "query" {
		t.Errorf("expected response_mode query, got %q", q.Get("response_mode"))
	}
	if q.Get("redirect_uri") != "http://localhost:8080/api/auth/callback" {
		t.Errorf("unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
	scope := q.Get("scope")
	if !strings.Contains(scope, "Files.ReadWrite.All") || !strings.Contains(scope, "User.Read") {
		t.Errorf("unexpected scope %q", scope)
	}
	if q.Get("state") == "" {
		t.Error("expected a state parameter")
	}
}

func TestStateRoundTrip(t *testing.T) {
	g := testGateway()

	state, err := g.newState()
	if err != nil {
		t.Fatalf("newState: %v", err)
	}
	if err := g.VerifyState(state); err != nil {
		t.Errorf("fresh state rejected: %v", err)
	}
}

func TestVerifyStateRejectsGarbage(t *testing.T) {
	g := testGateway()

	for _, state := range []string{"", "garbage", "a.b.c"} {
		if err := g.VerifyState(state); err == nil {
			t.Errorf("state %q should be rejected", state)
		}
	}
}

func TestVerifyStateRejectsWrongSecret(t *testing.T) {
	g := testGateway()
	other := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TenantID:     "common",
		RedirectURI:  "http://localhost:8080/api/auth/callback",
		StateSecret:  "a-different-secret",
	})

	state, err := other.newState()
	if err != nil {
		t.Fatalf("newState: %v", err)
	}
	if err := g.VerifyState(state); err == nil {
		t.Error("state signed with another secret should be rejected")
	}
}

func TestVerifyStateRejectsExpired(t *testing.T) {
	g := testGateway()

	past := time.Now().Add(-time.Hour)
	claims := jwt.RegisteredClaims{
		ID:        "expired",
		IssuedAt:  jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(stateLifetime)),
		Issuer:    "mediadrive",
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := g.VerifyState(state); err == nil {
		t.Error("expired state should be rejected")
	}
}

func TestVerifyStateRejectsUnsignedAlg(t *testing.T) {
	g := testGateway()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	state, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := g.VerifyState(state); err == nil {
		t.Error("alg=none state should be rejected")
	}
}

func TestExtractTokenHeaderPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/files?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")

	if got := ExtractToken(r); got != "from-header" {
		t.Errorf("expected header token to win, got %q", got)
	}
}

func TestExtractTokenQueryFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/stream/v1?token=from-query", nil)
	if got := ExtractToken(r); got != "from-query" {
		t.Errorf("expected query token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/stream/v1", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if got := ExtractToken(r); got != "" {
		t.Errorf("non-bearer Authorization must be ignored, got %q", got)
	}
}

func TestRequireToken(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFrom(r.Context())
	})
	rejected := false
	onMissing := func(w http.ResponseWriter, r *http.Request) {
		rejected = true
		w.WriteHeader(http.StatusUnauthorized)
	}

	handler := RequireToken(onMissing)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "tok" {
		t.Errorf("expected token in context, got %q", seen)
	}
	if rejected {
		t.Error("request with token should not be rejected")
	}

	seen = ""
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !rejected {
		t.Error("request without token should be rejected")
	}
	if seen != "" {
		t.Error("next handler should not run without a token")
	}
}
