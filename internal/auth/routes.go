// routes.go -- Route table for the gateway's HTTP surface.
package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the handler for everything under BasePath.
func (h *AuthHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health_check", h.CheckHealth)

	r.Group(func(r chi.Router) {
		r.Use(NoStore)
		r.Get("/client-login/{provider}", h.ClientLogin)
		r.Get("/oauth-redirect", h.OAuthRedirect)
		r.Get("/logout", h.Logout)
		r.Get("/session", h.SessionStatus)
	})
	return r
}
