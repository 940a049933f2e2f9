package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the process running?
//   - Readiness probe: Is the plugin enabled?
//   - Store health: Detailed health status of the persistent stores
type HealthHandler struct {
	runtime Runtime
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(runtime Runtime) *HealthHandler {
	return &HealthHandler{runtime: runtime}
}

// Liveness handles GET /health - simple liveness probe.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	version, build := h.runtime.Version()
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "authkeep",
		"version": version,
		"build":   build,
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 503 Service Unavailable unless the plugin is enabled.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	state := h.runtime.State()
	if state != "enabled" {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("plugin is "+state))
		return
	}

	sessions, _ := h.runtime.Sessions()
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"state":    state,
		"sessions": len(sessions),
	}))
}

// StoreHealth represents the health status of a single store.
type StoreHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Stores handles GET /health/stores - detailed store health.
//
// Returns 200 OK if all stores are healthy, 503 Service Unavailable if any
// store is unhealthy or the plugin is not enabled.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	stores, ok := h.runtime.Stores()
	if !ok {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("plugin is "+h.runtime.State()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]StoreHealth, 0, len(names))
	allHealthy := true
	for _, name := range names {
		start := time.Now()
		err := stores[name].Healthcheck(ctx)
		health := StoreHealth{Name: name, Status: "healthy", Latency: time.Since(start).String()}
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		}
		results = append(results, health)
	}

	if !allHealthy {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(results))
		return
	}
	WriteJSON(w, http.StatusOK, healthyResponse(results))
}
