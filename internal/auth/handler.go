// handler.go -- HTTP handlers for the login, callback, logout and session endpoints.
package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/MGallo-Code/authgate/internal/gateway"
	"github.com/MGallo-Code/authgate/internal/oauth"
	"github.com/MGallo-Code/authgate/internal/session"
	"github.com/MGallo-Code/authgate/internal/store"
	"github.com/go-chi/chi/v5"
)

// Auditor records login and logout outcomes.
// Satisfied by *store.PostgresStore -- defined here (at consumer) per Go convention.
type Auditor interface {
	RecordLogin(ctx context.Context, e store.LoginEvent) error
}

// Pinger is a dependency the health check can probe.
// Satisfied by *session.RedisStore and *store.PostgresStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AuthHandler holds dependencies for all HTTP handlers.
type AuthHandler struct {
	GW       *gateway.Gateway
	Sessions session.Store
	// SessionTTL is the cookie Max-Age; match the store's TTL.
	SessionTTL time.Duration
	// BasePath prefixes restart links, e.g. "/api/v1".
	BasePath string

	// Optional. Nil disables the audit trail.
	Audit Auditor
	// Optional. Nil reports the dependency as "disabled" on the health check.
	Redis    Pinger
	Postgres Pinger
}

// loginPath is the URL that (re)starts a login with provider.
func (h *AuthHandler) loginPath(provider oauth.ProviderID) string {
	return h.BasePath + "/client-login/" + url.PathEscape(string(provider))
}

// ClientLogin handles GET /client-login/{provider} -- stores fresh flow state in the
// caller's session and redirects the browser to the provider's consent page.
// Repeated ?scope= parameters override the provider's default scopes.
func (h *AuthHandler) ClientLogin(w http.ResponseWriter, r *http.Request) {
	provider := oauth.ProviderID(chi.URLParam(r, "provider"))

	sess, fresh, err := h.requestSession(r)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	consentURL, err := h.GW.Begin(r.Context(), sess, provider, r.URL.Query()["scope"])
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownProvider) {
			logWarn(r, "login requested for unknown provider", "provider", provider)
			NotFound(w)
			return
		}
		InternalServerError(w, r, err)
		return
	}

	// Re-set for existing sessions too, so Max-Age restarts with the flow
	SetSessionCookie(w, sess.ID(), h.SessionTTL)
	logDebug(r, "redirecting to provider", "provider", provider, "new_session", fresh)
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// OAuthRedirect handles GET /oauth-redirect -- the provider's callback. Validates state,
// exchanges the code, verifies the ID token and rotates the session id.
// ?provider= is an optional hint; the provider recorded at login is what gets used.
func (h *AuthHandler) OAuthRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hint := oauth.ProviderID(q.Get("provider"))

	// Provider-side failure (user denied consent, bad scope, ...). RFC 6749 §4.1.2.1.
	if code := q.Get("error"); code != "" {
		logWarn(r, "provider returned an error to the callback", "provider", hint, "error_code", code)
		h.audit(r, "login", hint, "provider_error", "")
		errorPage(w, r, http.StatusBadRequest, "The sign-in was cancelled or refused by the provider.", h.restartURL(hint))
		return
	}
	if q.Get("code") == "" || q.Get("state") == "" {
		BadRequest(w, r, "missing code or state")
		return
	}

	id, ok := cookieSessionID(r)
	if !ok {
		logWarn(r, "callback without a session cookie", "provider", hint)
		h.audit(r, "login", hint, gateway.OutcomeLabel(gateway.ErrNoFlowState), "")
		errorPage(w, r, http.StatusBadRequest, "Your sign-in session was not found. It may have expired.", h.restartURL(hint))
		return
	}
	sess := session.New(h.Sessions, id)

	out, err := h.GW.Callback(r.Context(), sess, hint, q.Get("code"), q.Get("state"))
	if err != nil {
		provider := hint
		var ae *gateway.AuthError
		if errors.As(err, &ae) && ae.Provider != "" {
			provider = ae.Provider
		}
		h.audit(r, "login", provider, gateway.OutcomeLabel(err), "")
		h.loginFailed(w, r, provider, err)
		return
	}

	SetSessionCookie(w, out.SessionID, h.SessionTTL)
	h.audit(r, "login", out.Provider, gateway.OutcomeLabel(nil), out.Subject)
	logInfo(r, "user logged in", "provider", out.Provider, "sub", out.Subject)
	http.Redirect(w, r, out.RedirectURL, http.StatusFound)
}

// loginFailed maps a callback error onto a response.
func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, provider oauth.ProviderID, err error) {
	switch gateway.KindOf(err) {
	case gateway.KindFlowIntegrity:
		if errors.Is(err, gateway.ErrStateMismatch) && provider != "" {
			logWarn(r, "callback state mismatch, restarting login", "provider", provider)
			http.Redirect(w, r, h.loginPath(provider), http.StatusSeeOther)
			return
		}
		logWarn(r, "callback without a login in progress", "provider", provider)
		errorPage(w, r, http.StatusBadRequest, "No sign-in was in progress for this browser session.", h.restartURL(provider))
	case gateway.KindTransport:
		logWarn(r, "login failed talking to provider", "provider", provider, "error", err)
		errorPage(w, r, http.StatusBadGateway, "The identity provider could not be reached.", h.restartURL(provider))
	case gateway.KindCrypto:
		logWarn(r, "id token rejected", "provider", provider, "error", err)
		errorPage(w, r, http.StatusUnauthorized, "The identity provider's response could not be verified.", h.restartURL(provider))
	case gateway.KindSession:
		logError(r, "session store failed during login", "provider", provider, "error", err)
		errorPage(w, r, http.StatusInternalServerError, "Your session could not be saved.", h.restartURL(provider))
	default:
		InternalServerError(w, r, err)
	}
}

// restartURL is the login link for provider, or "" when it isn't known or configured.
func (h *AuthHandler) restartURL(provider oauth.ProviderID) string {
	if provider == "" {
		return ""
	}
	if _, err := h.GW.Providers().Get(provider); err != nil {
		return ""
	}
	return h.loginPath(provider)
}

// Logout handles GET /logout -- purges the session, revokes tokens at the provider
// (best effort), clears the cookie and redirects. Works without a session too.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := cookieSessionID(r)
	if !ok {
		ClearSessionCookie(w)
		http.Redirect(w, r, h.GW.AfterLogoutURL(), http.StatusSeeOther)
		return
	}
	sess := session.New(h.Sessions, id)

	// Read before Logout purges it, for the audit row
	provider, _, _ := sess.Get(r.Context(), session.KeyAuthProvider)

	redirect, err := h.GW.Logout(r.Context(), sess)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	ClearSessionCookie(w)
	if provider != "" {
		h.audit(r, "logout", oauth.ProviderID(provider), "success", "")
		logInfo(r, "user logged out", "provider", provider)
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// SessionStatus handles GET /session -- reports whether the caller is logged in.
// Never returns tokens.
func (h *AuthHandler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := cookieSessionID(r)
	if !ok {
		JSON(w, http.StatusOK, gateway.Status{})
		return
	}
	st, err := h.GW.Status(r.Context(), session.New(h.Sessions, id))
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// audit writes a login_events row. Non-fatal: failures are logged, never surfaced.
func (h *AuthHandler) audit(r *http.Request, action string, provider oauth.ProviderID, outcome, subject string) {
	if h.Audit == nil {
		return
	}
	// RemoteAddr includes port -- INET column expects bare IP.
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	var ipAddr, userAgent *string
	if net.ParseIP(ip) != nil {
		ipAddr = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		userAgent = &ua
	}
	if provider == "" {
		provider = "unknown"
	}

	err = h.Audit.RecordLogin(r.Context(), store.LoginEvent{
		Provider:  string(provider),
		Action:    action,
		Outcome:   outcome,
		Subject:   subject,
		IPAddress: ipAddr,
		UserAgent: userAgent,
	})
	if err != nil {
		logWarn(r, "failed to record audit event", "action", action, "outcome", outcome, "error", err)
	}
}
