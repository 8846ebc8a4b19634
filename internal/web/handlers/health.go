package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// Health reports liveness, version, item count and live stream activity
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.DB().CountItems(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Health check failed to count items")
		h.jsonError(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}

	h.mu.RLock()
	resp := map[string]any{
		"status":      "ok",
		"version":     h.versionInfo,
		"items":       count,
		"subscribers": h.store.Hub().SubscriberCount(),
	}
	if h.maintenance != nil {
		resp["maintenance"] = h.maintenance.Status()
	}
	h.mu.RUnlock()

	h.jsonResponse(w, http.StatusOK, resp)
}
