package controller

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LeaseHolder reports whether this agent still owns its queue key.
type LeaseHolder interface {
	Held() bool
}

type HealthController struct {
	store Pinger
	lease LeaseHolder
}

// NewHealthController builds the health endpoints. lease may be nil when
// the store has no ownership lease.
func NewHealthController(store Pinger, lease LeaseHolder) *HealthController {
	return &HealthController{store: store, lease: lease}
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "queue store unavailable",
		})
		return
	}

	if h.lease != nil && !h.lease.Held() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "queue lease lost",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
