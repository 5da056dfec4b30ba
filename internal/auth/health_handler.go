// health_handler.go -- Health check handler for GET /health_check.
package auth

import (
	"context"
	"net/http"
	"time"
)

// healthTimeout bounds each dependency ping.
const healthTimeout = 2 * time.Second

// CheckHealth handles GET /health_check -- pings Redis and Postgres, returns per-dependency status.
// A dependency that isn't configured reports "disabled". Returns 200 if everything
// configured is healthy, 503 otherwise.
func (h *AuthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	redisStatus := h.ping(r, "redis", h.Redis)
	postgresStatus := h.ping(r, "postgres", h.Postgres)

	status := http.StatusOK
	if redisStatus == "error" || postgresStatus == "error" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, status, struct {
		Postgres string `json:"postgres"`
		Redis    string `json:"redis"`
	}{postgresStatus, redisStatus})
}

func (h *AuthHandler) ping(r *http.Request, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		logError(r, name+" health check failed", "error", err)
		return "error"
	}
	return "ok"
}
