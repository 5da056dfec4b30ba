package gateway

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/MGallo-Code/authgate/internal/metrics"
	"github.com/MGallo-Code/authgate/internal/oauth"
	"github.com/MGallo-Code/authgate/internal/session"
)

// credentialKeys are what a logged-in session holds.
var credentialKeys = []string{session.KeyAccessToken, session.KeyRefreshToken, session.KeyAuthProvider}

// Begin stores fresh flow state in sess and returns the provider's consent URL.
// Empty scopes use the provider's configured defaults. No network call.
func (g *Gateway) Begin(ctx context.Context, sess *session.Session, id oauth.ProviderID, scopes []string) (string, error) {
	const op = "begin"

	p, err := g.providers.Get(id)
	if err != nil {
		return "", &AuthError{Kind: KindConfiguration, Op: op, Provider: id, Err: fmt.Errorf("%w: %w", ErrUnknownProvider, err)}
	}

	verifier, challenge := oauth.NewChallenge()
	flow := session.FlowState{
		CSRFToken:    oauth.NewCSRFToken(),
		PKCEVerifier: verifier,
		Provider:     string(id),
	}
	if p.Capability() == oauth.CapabilityOIDC {
		flow.Nonce = oauth.NewNonce()
	}
	if err := session.SaveFlow(ctx, sess, flow); err != nil {
		return "", &AuthError{Kind: KindSession, Op: op, Provider: id, Err: err}
	}

	metrics.LoginAttempts.WithLabelValues(string(id)).Inc()
	g.logger.Debug("login started", "provider", id, "scopes", scopes)
	return p.AuthCodeURL(flow.CSRFToken, challenge, scopes, flow.Nonce), nil
}

// Complete validates the callback against the stored flow state and exchanges code.
//
// The exchange always goes to the provider recorded by Begin. hint (the provider the
// callback claims to come from) is only compared and logged, so a callback replayed
// against another provider can't get the code sent with the wrong credentials.
// A state mismatch leaves the session untouched and makes no network call.
func (g *Gateway) Complete(ctx context.Context, sess *session.Session, hint oauth.ProviderID, code, state string) (*Exchange, error) {
	const op = "complete"

	flow, err := session.LoadFlow(ctx, sess)
	if err != nil {
		return nil, &AuthError{Kind: KindSession, Op: op, Provider: hint, Err: err}
	}
	if !flow.Ready() {
		return nil, &AuthError{Kind: KindFlowIntegrity, Op: op, Provider: hint, Err: ErrNoFlowState}
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(flow.CSRFToken)) != 1 {
		g.logger.Warn("callback state mismatch, possible forged callback", "provider", flow.Provider)
		return nil, &AuthError{Kind: KindFlowIntegrity, Op: op, Provider: oauth.ProviderID(flow.Provider), Err: ErrStateMismatch}
	}

	id := oauth.ProviderID(flow.Provider)
	if hint != "" && hint != id {
		g.logger.Warn("callback provider differs from the one recorded at login, using recorded",
			"hint", hint, "recorded", id)
	}

	// The state is spent whatever happens next; codes are single-use.
	if err := session.ClearFlow(ctx, sess); err != nil {
		return nil, &AuthError{Kind: KindSession, Op: op, Provider: id, Err: err}
	}

	p, err := g.providers.Get(id)
	if err != nil {
		return nil, &AuthError{Kind: KindConfiguration, Op: op, Provider: id, Err: fmt.Errorf("%w: %w", ErrUnknownProvider, err)}
	}

	start := time.Now()
	tokens, err := p.Exchange(ctx, code, flow.PKCEVerifier)
	metrics.ExchangeSeconds.WithLabelValues(string(id)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &AuthError{Kind: KindTransport, Op: op, Provider: id, Err: fmt.Errorf("%w: %w", ErrExchangeFailed, err)}
	}
	if tokens.AccessToken == "" {
		return nil, &AuthError{Kind: KindTransport, Op: op, Provider: id, Err: fmt.Errorf("%w: empty access token", ErrExchangeFailed)}
	}
	return &Exchange{Tokens: tokens, Provider: p, Nonce: flow.Nonce}, nil
}

// VerifyIDToken checks the ID token of an OIDC exchange and returns its claims.
// Opaque-token providers yield (nil, nil). The ID token is dropped from ex afterwards.
func (g *Gateway) VerifyIDToken(ctx context.Context, ex *Exchange) (*oauth.Claims, error) {
	const op = "verify"
	id := ex.Provider.ID()

	if ex.Provider.Capability() != oauth.CapabilityOIDC {
		return nil, nil
	}
	raw := ex.Tokens.IDToken
	ex.Tokens.IDToken = ""
	if raw == "" {
		return nil, &AuthError{Kind: KindCrypto, Op: op, Provider: id, Err: ErrIDTokenMissing}
	}

	claims, err := g.verifier.Verify(ctx, raw, ex.Provider, ex.Nonce)
	if err != nil {
		return nil, &AuthError{Kind: verifyKind(err), Op: op, Provider: id, Err: err}
	}
	return claims, nil
}

// Finish stores the tokens, rotates the session id and returns where to send the browser.
// Any failure purges the session so it never looks half logged in.
func (g *Gateway) Finish(ctx context.Context, sess *session.Session, ex *Exchange, claims *oauth.Claims) (*Outcome, error) {
	const op = "finish"
	id := ex.Provider.ID()

	fail := func(err error) (*Outcome, error) {
		if perr := sess.Purge(ctx); perr != nil {
			g.logger.Error("purging session after failed finish", "provider", id, "error", perr)
		}
		return nil, &AuthError{Kind: KindSession, Op: op, Provider: id, Err: err}
	}

	if err := sess.Put(ctx, session.KeyAccessToken, ex.Tokens.AccessToken); err != nil {
		return fail(err)
	}
	if ex.Tokens.RefreshToken != "" {
		err := sess.Put(ctx, session.KeyRefreshToken, ex.Tokens.RefreshToken)
		if err != nil {
			return fail(err)
		}
	} else if err := sess.Delete(ctx, session.KeyRefreshToken); err != nil {
		// a refresh token from an earlier login must not outlive it
		return fail(err)
	}
	if err := sess.Put(ctx, session.KeyAuthProvider, string(id)); err != nil {
		return fail(err)
	}

	if err := sess.Renew(ctx); err != nil {
		return fail(err)
	}

	out := &Outcome{RedirectURL: g.cfg.AfterLoginURL, SessionID: sess.ID(), Provider: id}
	if claims != nil {
		out.Subject = claims.Subject
	}
	return out, nil
}

// Callback runs Complete, VerifyIDToken and Finish. On failure after the state
// check, credentials from any earlier login in this session are discarded, so a
// failed attempt always ends logged out.
func (g *Gateway) Callback(ctx context.Context, sess *session.Session, hint oauth.ProviderID, code, state string) (out *Outcome, err error) {
	defer func() {
		provider := string(hint)
		if out != nil {
			provider = string(out.Provider)
		}
		metrics.LoginOutcomes.WithLabelValues(provider, OutcomeLabel(err)).Inc()
	}()

	ex, err := g.Complete(ctx, sess, hint, code, state)
	if err != nil {
		if KindOf(err) == KindTransport {
			g.discardCredentials(ctx, sess)
		}
		return nil, err
	}

	claims, err := g.VerifyIDToken(ctx, ex)
	if err != nil {
		g.discardCredentials(ctx, sess)
		return nil, err
	}

	out, err = g.Finish(ctx, sess, ex, claims)
	if err != nil {
		return nil, err
	}
	g.logger.Info("login completed", "provider", out.Provider, "sub", out.Subject)
	return out, nil
}

func (g *Gateway) discardCredentials(ctx context.Context, sess *session.Session) {
	if err := sess.Delete(ctx, credentialKeys...); err != nil {
		g.logger.Error("discarding credentials after failed login", "error", err)
	}
}
