// session.go

// Session cookie management. The cookie holds only the opaque session id;
// tokens stay server-side in the session store.
package auth

import (
	"net/http"
	"time"

	"github.com/MGallo-Code/authgate/internal/session"
	"github.com/gofrs/uuid/v5"
)

// SessionCookieName uses the __Host- prefix: Secure, Path=/ and no Domain are enforced by browsers.
const SessionCookieName = "__Host-gw-session"

// SetSessionCookie writes the session cookie with HttpOnly, Secure, SameSite=Lax.
// Lax, not Strict: the provider's redirect back to /oauth-redirect is a cross-site
// top-level navigation and must carry the cookie.
func SetSessionCookie(w http.ResponseWriter, sessionID string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearSessionCookie overwrites the session cookie with MaxAge=-1 to trigger browser deletion.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// cookieSessionID returns the session id from the request cookie.
// Missing, empty or malformed cookies report false; ids are always UUIDs.
func cookieSessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, err := uuid.FromString(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// requestSession returns a handle on the caller's session, starting a new one
// when the request has no usable cookie. fresh is true for a new session.
func (h *AuthHandler) requestSession(r *http.Request) (sess *session.Session, fresh bool, err error) {
	if id, ok := cookieSessionID(r); ok {
		return session.New(h.Sessions, id), false, nil
	}
	sess, err = session.Start(h.Sessions)
	return sess, true, err
}
