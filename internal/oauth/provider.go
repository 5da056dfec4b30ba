// provider.go -- OAuth provider interface and shared types.
package oauth

import (
	"context"
	"errors"
	"time"
)

// ProviderID names a configured identity provider. It is the URL param on the
// login route and the value recorded in the session at authorization time.
type ProviderID string

// Well-known provider ids. Any other id from the providers file is accepted too.
const (
	ProviderGoogle ProviderID = "google"
	ProviderFusion ProviderID = "fusion"
	ProviderGitHub ProviderID = "github"
)

// Capability tells the gateway what a provider returns from the token endpoint.
type Capability int

const (
	// CapabilityOpaque providers return only an opaque access token.
	CapabilityOpaque Capability = iota
	// CapabilityOIDC providers also return an OpenID Connect ID token that must be verified.
	CapabilityOIDC
)

// String returns "oidc" or "oauth2".
func (c Capability) String() string {
	if c == CapabilityOIDC {
		return "oidc"
	}
	return "oauth2"
}

var (
	// ErrProviderNotConfigured is returned by Registry.Get for unknown ids.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrRevokeUnsupported is returned by Revoke when the provider has no revocation endpoint.
	ErrRevokeUnsupported = errors.New("provider has no revocation endpoint")
	// ErrIntrospectUnsupported is returned by Introspect when the provider has no introspection endpoint.
	ErrIntrospectUnsupported = errors.New("provider has no introspection endpoint")
)

// TokenSet is what a successful code exchange yields.
// IDToken is only set by OIDC providers and is never persisted.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Expiry       time.Time
}

// Claims holds the verified ID-token claims.
// Only produced by jwks.Verifier after the signature and iss/aud/exp checks pass.
type Claims struct {
	Issuer        string
	Subject       string
	Audience      []string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Nonce         string
	ExpiresAt     time.Time
	IssuedAt      time.Time
	Raw           map[string]any
}

// Introspection is the subset of an RFC 7662 response the gateway cares about.
type Introspection struct {
	Active    bool   `json:"active"`
	Subject   string `json:"sub,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// Provider is an OAuth2 identity provider.
// One implementation per provider config, dispatched through Registry; callers never
// branch on the provider id.
// PKCE (RFC 7636) is required: callers pass the code_challenge to AuthCodeURL and the
// matching code_verifier to Exchange.
type Provider interface {
	// ID returns the registry key.
	ID() ProviderID

	// Capability reports whether the provider issues ID tokens.
	Capability() Capability

	// ClientID is the gateway's client id at this provider, and the expected ID-token audience.
	ClientID() string

	// Issuer is the expected "iss" of ID tokens. Empty for opaque providers.
	Issuer() string

	// JWKSURL is where the provider publishes its signing keys. Empty for opaque providers.
	JWKSURL() string

	// AuthCodeURL returns the consent page URL with state and PKCE challenge embedded.
	// Empty scopes fall back to the configured defaults; empty nonce is omitted.
	AuthCodeURL(state, codeChallenge string, scopes []string, nonce string) string

	// Exchange trades an authorization code for tokens. Never retried: codes are single-use.
	Exchange(ctx context.Context, code, codeVerifier string) (*TokenSet, error)

	// Revoke invalidates an access or refresh token at the provider.
	Revoke(ctx context.Context, token string) error

	// Introspect asks the provider whether a token is still active.
	Introspect(ctx context.Context, token string) (*Introspection, error)
}
