package handlers

import (
	"net/http"
	"time"

	"github.com/obsync/obsync/pkg/chunkstore"
	"github.com/obsync/obsync/pkg/store"
)

// HealthHandler handles the unauthenticated health probes.
//
//   - Liveness: is the server process running?
//   - Readiness: are both backing stores reachable?
type HealthHandler struct {
	store  store.Store
	chunks chunkstore.Store
}

// NewHealthHandler creates a health handler. Either store may be nil, in
// which case readiness reports unhealthy.
func NewHealthHandler(st store.Store, chunks chunkstore.Store) *HealthHandler {
	return &HealthHandler{store: st, chunks: chunks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Time   time.Time         `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, &healthResponse{Status: "ok", Time: time.Now().UTC()})
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	if h.store == nil {
		checks["metadata"] = "not configured"
		healthy = false
	} else if err := h.store.HealthCheck(); err != nil {
		checks["metadata"] = err.Error()
		healthy = false
	} else {
		checks["metadata"] = "ok"
	}

	if h.chunks == nil {
		checks["chunks"] = "not configured"
		healthy = false
	} else if err := h.chunks.HealthCheck(r.Context()); err != nil {
		checks["chunks"] = err.Error()
		healthy = false
	} else {
		checks["chunks"] = "ok"
	}

	status := http.StatusOK
	resp := &healthResponse{Status: "ready", Time: time.Now().UTC(), Checks: checks}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "unavailable"
	}
	WriteJSON(w, status, resp)
}
