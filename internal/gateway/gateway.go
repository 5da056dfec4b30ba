// Package gateway drives the Authorization Code + PKCE login flow.
//
// Every step takes the caller's *session.Session explicitly; the package never
// sees HTTP. Begin starts a login, Callback finishes it (Complete, then ID-token
// verification for OIDC providers, then Finish), Logout ends it.
package gateway

import (
	"context"
	"log/slog"

	"github.com/MGallo-Code/authgate/internal/jwks"
	"github.com/MGallo-Code/authgate/internal/oauth"
)

// Verifier checks an ID token for the provider that issued it.
// Satisfied by *jwks.Verifier.
type Verifier interface {
	Verify(ctx context.Context, raw string, t jwks.Target, nonce string) (*oauth.Claims, error)
}

// Config holds the redirect targets after login and logout.
type Config struct {
	AfterLoginURL  string
	AfterLogoutURL string
}

// Gateway is shared by all requests. Safe for concurrent use.
type Gateway struct {
	providers *oauth.Registry
	verifier  Verifier
	cfg       Config
	logger    *slog.Logger
}

// New returns a Gateway. A nil logger means slog.Default().
func New(providers *oauth.Registry, verifier Verifier, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AfterLogoutURL == "" {
		cfg.AfterLogoutURL = cfg.AfterLoginURL
	}
	return &Gateway{providers: providers, verifier: verifier, cfg: cfg, logger: logger}
}

// Providers exposes the registry, read-only.
func (g *Gateway) Providers() *oauth.Registry { return g.providers }

// AfterLogoutURL is where Logout sends the browser.
func (g *Gateway) AfterLogoutURL() string { return g.cfg.AfterLogoutURL }

// Exchange is what a validated callback produced.
type Exchange struct {
	Tokens   *oauth.TokenSet
	Provider oauth.Provider
	// Nonce sent with the authorization request; empty for opaque-token providers.
	Nonce string
}

// Outcome tells the HTTP layer where to send the browser after login.
type Outcome struct {
	RedirectURL string
	SessionID   string
	Provider    oauth.ProviderID
	// Subject is the verified "sub" claim; empty for opaque-token providers.
	Subject string
}
