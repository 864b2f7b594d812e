// Package handlers implements the HTTP facade's endpoints. Handlers
// depend on narrow interfaces so tests can substitute the engine and
// registry.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/noderig/noderig/internal/server/middleware"
)

// HealthChecker probes one dependency.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is the healthy-path body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// HealthManager aggregates named checkers into one endpoint.
type HealthManager struct {
	version  string
	checkers map[string]HealthChecker
}

// NewHealthManager builds an empty manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{version: version, checkers: map[string]HealthChecker{}}
}

// RegisterChecker adds a named dependency probe.
func (m *HealthManager) RegisterChecker(name string, c HealthChecker) {
	m.checkers[name] = c
}

// HealthHandler runs every checker with a short per-check timeout.
// Any unhealthy check yields 503 with the standard error envelope.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	for name, checker := range m.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		err := checker.CheckHealth(ctx)
		cancel()
		if err != nil {
			checks[name] = "unhealthy"
			healthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	if !healthy {
		middleware.WriteError(w, r, http.StatusServiceUnavailable,
			"SERVICE_UNAVAILABLE", "one or more health checks failed")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: m.version,
		Checks:  checks,
	})
}

// VersionHandler reports the build version.
func (m *HealthManager) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": m.version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
