// discovery.go -- Fills OIDC provider endpoints from /.well-known/openid-configuration.
package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Discover fetches the issuer's discovery document and fills any endpoint cfg leaves
// empty. Explicit values in cfg win. Discovery documents are OpenID Connect, so the
// result is always an OIDC provider. Makes one outbound request; call at startup.
func Discover(ctx context.Context, cfg Config) (Config, error) {
	if cfg.Issuer == "" {
		return cfg, fmt.Errorf("provider %s: discovery needs an issuer", cfg.ID)
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	ctx = oidc.ClientContext(ctx, &http.Client{Timeout: timeout})

	p, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return cfg, fmt.Errorf("provider %s: oidc discovery: %w", cfg.ID, err)
	}

	var extra struct {
		JWKSURL       string `json:"jwks_uri"`
		RevokeURL     string `json:"revocation_endpoint"`
		IntrospectURL string `json:"introspection_endpoint"`
	}
	if err := p.Claims(&extra); err != nil {
		return cfg, fmt.Errorf("provider %s: decoding discovery document: %w", cfg.ID, err)
	}

	ep := p.Endpoint()
	cfg.AuthURL = orDefault(cfg.AuthURL, ep.AuthURL)
	cfg.TokenURL = orDefault(cfg.TokenURL, ep.TokenURL)
	cfg.JWKSURL = orDefault(cfg.JWKSURL, extra.JWKSURL)
	cfg.RevokeURL = orDefault(cfg.RevokeURL, extra.RevokeURL)
	cfg.IntrospectURL = orDefault(cfg.IntrospectURL, extra.IntrospectURL)
	cfg.Capability = CapabilityOIDC
	return cfg, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
