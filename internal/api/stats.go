package api

import (
	"net/http"

	"github.com/unifound/unifound/internal/gateway"
)

// StatsHandler serves the landing-page counters.
type StatsHandler struct {
	GW gateway.Gateway
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.GW.Stats(r.Context())
	if err != nil {
		failure(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
