package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

const readinessTimeout = 3 * time.Second

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	names  []string
	checks map[string]PingFunc
}

// NewHealthHandler builds a handler whose readiness probe runs every check.
// Nil checks are skipped.
func NewHealthHandler(checks map[string]PingFunc) *HealthHandler {
	h := &HealthHandler{checks: make(map[string]PingFunc, len(checks))}
	for name, fn := range checks {
		if fn == nil {
			continue
		}
		h.checks[name] = fn
		h.names = append(h.names, name)
	}
	sort.Strings(h.names)
	return h
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Liveness always answers 200 while the process is serving.
//
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /_gateway/health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness pings the credential store and any optional dependency.
//
// @Summary      Readiness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  readinessResponse
// @Failure      503  {object}  readinessResponse
// @Router       /_gateway/health/ready [get]
func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.names))
	healthy := true
	for _, name := range h.names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, readinessResponse{Status: "degraded", Dependencies: deps})
	}
	return c.JSON(http.StatusOK, readinessResponse{Status: "ok", Dependencies: deps})
}
