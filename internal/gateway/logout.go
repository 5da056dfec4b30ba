package gateway

import (
	"context"
	"errors"

	"github.com/MGallo-Code/authgate/internal/oauth"
	"github.com/MGallo-Code/authgate/internal/session"
)

// Logout destroys the session and returns the post-logout redirect.
// Tokens are revoked at the provider afterwards, best effort: a provider that is
// down or has no revocation endpoint never keeps the user logged in here.
func (g *Gateway) Logout(ctx context.Context, sess *session.Session) (string, error) {
	const op = "logout"

	provider, _, err := sess.Get(ctx, session.KeyAuthProvider)
	if err != nil {
		return "", &AuthError{Kind: KindSession, Op: op, Err: err}
	}
	// refresh token first: revoking it usually kills the access token too
	token, ok, err := sess.Get(ctx, session.KeyRefreshToken)
	if err == nil && !ok {
		token, _, err = sess.Get(ctx, session.KeyAccessToken)
	}
	if err != nil {
		return "", &AuthError{Kind: KindSession, Op: op, Err: err}
	}

	if err := sess.Purge(ctx); err != nil {
		return "", &AuthError{Kind: KindSession, Op: op, Provider: oauth.ProviderID(provider), Err: err}
	}

	if provider != "" && token != "" {
		g.revoke(ctx, oauth.ProviderID(provider), token)
	}
	return g.cfg.AfterLogoutURL, nil
}

func (g *Gateway) revoke(ctx context.Context, id oauth.ProviderID, token string) {
	p, err := g.providers.Get(id)
	if err != nil {
		g.logger.Warn("logout: provider no longer configured, skipping revocation", "provider", id)
		return
	}
	err = p.Revoke(ctx, token)
	switch {
	case errors.Is(err, oauth.ErrRevokeUnsupported):
		g.logger.Debug("logout: provider has no revocation endpoint", "provider", id)
	case err != nil:
		g.logger.Warn("logout: token revocation failed", "provider", id, "error", err)
	default:
		g.logger.Debug("logout: token revoked", "provider", id)
	}
}

// Status describes a session for GET /session.
type Status struct {
	LoggedIn bool             `json:"logged_in"`
	Provider oauth.ProviderID `json:"provider,omitempty"`
	// Active is the provider's introspection verdict, nil when it has no
	// introspection endpoint or could not be reached.
	Active *bool `json:"active,omitempty"`
}

// Status reports whether sess holds credentials and, where the provider supports
// RFC 7662 introspection, whether it still considers the access token active.
func (g *Gateway) Status(ctx context.Context, sess *session.Session) (*Status, error) {
	const op = "status"

	token, ok, err := sess.Get(ctx, session.KeyAccessToken)
	if err != nil {
		return nil, &AuthError{Kind: KindSession, Op: op, Err: err}
	}
	if !ok {
		return &Status{}, nil
	}
	provider, _, err := sess.Get(ctx, session.KeyAuthProvider)
	if err != nil {
		return nil, &AuthError{Kind: KindSession, Op: op, Err: err}
	}

	st := &Status{LoggedIn: true, Provider: oauth.ProviderID(provider)}
	p, err := g.providers.Get(st.Provider)
	if err != nil {
		return st, nil
	}
	in, err := p.Introspect(ctx, token)
	switch {
	case errors.Is(err, oauth.ErrIntrospectUnsupported):
	case err != nil:
		g.logger.Warn("status: introspection failed", "provider", st.Provider, "error", err)
	default:
		st.Active = &in.Active
	}
	return st, nil
}
