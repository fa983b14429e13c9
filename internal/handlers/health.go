package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/HammerMeetNail/roots/internal/logging"
)

const healthCheckTimeout = 5 * time.Second

type HealthChecker interface {
	Health(ctx context.Context) error
}

// NamedCheck pairs a dependency with the name it reports under.
type NamedCheck struct {
	Name    string
	Checker HealthChecker
}

type HealthHandler struct {
	checks  []NamedCheck
	timeout time.Duration
	now     func() time.Time
}

func NewHealthHandler(checks ...NamedCheck) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: healthCheckTimeout,
		now:     time.Now,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

func (h *HealthHandler) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		if err := c.Checker.Health(ctx); err != nil {
			healthy = false
			results[c.Name] = "unhealthy: " + err.Error()
			logging.Warn("Health check failed", map[string]interface{}{
				"check": c.Name,
				"error": err.Error(),
			})
			continue
		}
		results[c.Name] = "healthy"
	}
	return results, healthy
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.run(r.Context())

	response := HealthResponse{
		Status:    "healthy",
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.run(r.Context()); !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
