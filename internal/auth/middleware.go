// middleware.go

// HTTP middleware for the auth routes.
package auth

import "net/http"

// NoStore marks responses as uncacheable. Login redirects carry state and
// session cookies that must never be replayed from a shared cache.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
