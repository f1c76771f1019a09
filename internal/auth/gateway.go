// Package auth implements the OAuth2 authorization-code flow against
// Azure AD and bearer-credential extraction for protected endpoints.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

type contextKey string

const tokenContextKey contextKey = "access_token"

// Scopes requested from Azure AD. The frontend uses the resulting access
// token directly against Graph; no refresh token handling exists, so
// offline_access is not requested.
var Scopes = []string{"Files.ReadWrite.All", "User.Read"}

const stateLifetime = 10 * time.Minute

// Config holds gateway construction options.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	StateSecret  string
}

// Gateway builds authorize URLs and exchanges authorization codes.
type Gateway struct {
	oauth  *oauth2.Config
	secret []byte
}

// New creates a new Gateway.
func New(cfg Config) *Gateway {
	return &Gateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     endpoints.AzureAD(cfg.TenantID),
		},
		secret: []byte(cfg.StateSecret),
	}
}

// AuthCodeURL returns the authorize URL the browser should navigate to,
// with a freshly signed state parameter.
func (g *Gateway) AuthCodeURL() (string, error) {
	state, err := g.newState()
	if err != nil {
		return "", err
	}
	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query")), nil
}

// Exchange trades an authorization code for an access token.
func (g *Gateway) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

// newState issues a short-lived signed state token. The original flow sent
// no state at all, leaving the callback open to CSRF.
func (g *Gateway) newState() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateLifetime)),
		Issuer:    "mediadrive",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// VerifyState validates the state parameter returned by the callback.
func (g *Gateway) VerifyState(state string) error {
	if state == "" {
		return fmt.Errorf("missing state")
	}
	token, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid state")
	}
	return nil
}

// ExtractToken pulls the bearer credential from a request. The
// Authorization header takes precedence; the token query parameter is a
// fallback for media elements that cannot set headers.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// TokenFrom returns the bearer credential stashed by RequireToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// RequireToken is middleware that rejects requests without a bearer
// credential and stores the credential in the request context. The token
// is the user's upstream access token and is validated by Graph itself on
// every proxied call; the gateway only checks presence.
func RequireToken(onMissing http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				onMissing(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
