package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/heirvault/heirvault/internal/health"
)

// healthCheckTimeout bounds dependency probes on the readiness
// endpoint.
const healthCheckTimeout = 5 * time.Second

// HealthHandlers serves the liveness and readiness endpoints. Checkers
// are optional: a deployment without Redis simply has no redis check.
type HealthHandlers struct {
	db     health.Checker
	redis  health.Checker
	logger *slog.Logger
}

// NewHealthHandlers creates handlers for the /health endpoints. Either
// checker may be nil.
func NewHealthHandlers(db, redis health.Checker, logger *slog.Logger) *HealthHandlers {
	return &HealthHandlers{db: db, redis: redis, logger: logger}
}

// HealthResponse is the body of both health endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Live handles GET /health/live. It answers 200 as long as the process
// is serving requests; dependencies are not consulted.
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

// Ready handles GET /health/ready. Every configured dependency is
// probed; any failure makes the whole response 503 so the instance is
// pulled from rotation.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	probe := func(name string, c health.Checker) {
		if c == nil {
			return
		}
		if err := c.HealthCheck(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
			checks[name] = "unhealthy"
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	probe("database", h.db)
	probe("redis", h.redis)

	status := http.StatusOK
	body := HealthResponse{Status: "ok", Checks: checks, Timestamp: time.Now().UTC()}
	if !healthy {
		status = http.StatusServiceUnavailable
		body.Status = "unavailable"
	}
	writeJSON(w, r.Context(), status, body)
}
