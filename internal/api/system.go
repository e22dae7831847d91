package api

import (
	"net/http"
	"time"

	"github.com/custodian-sh/custodian/internal/metrics"
	"github.com/custodian-sh/custodian/internal/models"
)

// Health reports whether the daemon can serve traffic. It stays outside
// authentication so load balancers can probe it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Health check failed", map[string]interface{}{"error": err.Error()})
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// SystemStatus reports daemon build, uptime, store, and host information.
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountResourcesByKind(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resources := make(map[string]int, len(counts))
	for kind, n := range counts {
		resources[string(kind)] = n
	}

	status := models.SystemStatus{
		Service:       "custodiand",
		Version:       h.options.Version,
		StartedAt:     h.startedAt,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		StoreType:     h.options.StoreType,
		Resources:     resources,
		Host:          metrics.CollectHostInfo(),
	}
	h.writeJSON(w, http.StatusOK, status)
}
