// client.go -- Provider implementation backed by golang.org/x/oauth2.
// Works for both OIDC providers (Google, FusionAuth) and opaque-token providers (GitHub);
// the difference is only the Capability and whether an ID token comes back.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds every outbound call when Config.HTTPTimeout is zero.
const DefaultHTTPTimeout = 5 * time.Second

// Config describes one provider's client registration and endpoints.
type Config struct {
	ID            ProviderID
	Capability    Capability
	ClientID      string
	ClientSecret  Secret
	AuthURL       string
	TokenURL      string
	RevokeURL     string // optional
	IntrospectURL string // optional
	JWKSURL       string // OIDC only
	Issuer        string // OIDC only
	RedirectURL   string
	Scopes        []string
	HTTPTimeout   time.Duration
}

// Validate checks the fields every provider needs, plus the OIDC ones when applicable.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("provider id is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("provider %s: client id is required", c.ID)
	}
	if c.AuthURL == "" || c.TokenURL == "" {
		return fmt.Errorf("provider %s: auth and token urls are required", c.ID)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("provider %s: redirect url is required", c.ID)
	}
	if c.Capability == CapabilityOIDC && (c.JWKSURL == "" || c.Issuer == "") {
		return fmt.Errorf("provider %s: oidc providers need issuer and jwks url", c.ID)
	}
	return nil
}

// Client implements Provider.
type Client struct {
	id            ProviderID
	capability    Capability
	config        *oauth2.Config
	revokeURL     string
	introspectURL string
	jwksURL       string
	issuer        string
	http          *http.Client
	timeout       time.Duration
}

// NewClient validates cfg and returns a ready-to-use Client. Safe for concurrent use.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Client{
		id:         cfg.ID,
		capability: cfg.Capability,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret.Reveal(),
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				// Pinned so a failed exchange isn't replayed with the other auth style.
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: cfg.Scopes,
		},
		revokeURL:     cfg.RevokeURL,
		introspectURL: cfg.IntrospectURL,
		jwksURL:       cfg.JWKSURL,
		issuer:        cfg.Issuer,
		http:          &http.Client{Timeout: timeout},
		timeout:       timeout,
	}, nil
}

func (c *Client) ID() ProviderID         { return c.id }
func (c *Client) Capability() Capability { return c.capability }
func (c *Client) ClientID() string       { return c.config.ClientID }
func (c *Client) Issuer() string         { return c.issuer }
func (c *Client) JWKSURL() string        { return c.jwksURL }

// AuthCodeURL builds the consent page URL with state and PKCE S256 challenge embedded.
func (c *Client) AuthCodeURL(state, codeChallenge string, scopes []string, nonce string) string {
	cfg := c.config
	if len(scopes) > 0 {
		scoped := *c.config
		scoped.Scopes = scopes
		cfg = &scoped
	}
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}
	return cfg.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens using the PKCE verifier.
// The call is bounded by the client timeout and by ctx.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier string) (*TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	token, err := c.config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging code with %s: %w", c.id, err)
	}

	ts := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if raw, ok := token.Extra("id_token").(string); ok {
		ts.IDToken = raw
	}
	return ts, nil
}

// Revoke posts an RFC 7009 revocation request. 200 means revoked (or already invalid).
func (c *Client) Revoke(ctx context.Context, token string) error {
	if c.revokeURL == "" {
		return ErrRevokeUnsupported
	}
	resp, err := c.postForm(ctx, c.revokeURL, url.Values{"token": {token}})
	if err != nil {
		return fmt.Errorf("revoking token at %s: %w", c.id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoking token at %s: http %d", c.id, resp.StatusCode)
	}
	return nil
}

// Introspect posts an RFC 7662 introspection request.
func (c *Client) Introspect(ctx context.Context, token string) (*Introspection, error) {
	if c.introspectURL == "" {
		return nil, ErrIntrospectUnsupported
	}
	resp, err := c.postForm(ctx, c.introspectURL, url.Values{"token": {token}})
	if err != nil {
		return nil, fmt.Errorf("introspecting token at %s: %w", c.id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspecting token at %s: http %d", c.id, resp.StatusCode)
	}
	var out Introspection
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding introspection from %s: %w", c.id, err)
	}
	return &out, nil
}

// postForm sends form with client credentials to endpoint.
// c.http carries the timeout, which covers reading the body too.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}
