package handlers

import (
	"net/http"
	"time"

	"github.com/costwise/costwise/internal/budget"
	"github.com/costwise/costwise/internal/catalog"
)

// Health handles GET /health. Bare payload, no envelope, so uptime
// checks can match on the exact body.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// modelInfo decorates a catalog entry with runtime key availability.
type modelInfo struct {
	catalog.Model
	Available bool `json:"available"`
}

// ListModels handles GET /api/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models := h.catalog.Models()
	out := make([]modelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, modelInfo{Model: m, Available: catalog.Available(m.Provider)})
	}
	ok(w, map[string]interface{}{
		"models":       out,
		"routing_mode": h.config.RoutingMode,
	})
}

// GetBudget handles GET /api/budget.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	spentToday, err := h.db.CostSince(r.Context(), budget.MidnightUTC())
	if err != nil {
		fail(w, http.StatusInternalServerError, "database error")
		return
	}
	cumulative, err := h.db.CumulativeCost(r.Context())
	if err != nil {
		fail(w, http.StatusInternalServerError, "database error")
		return
	}
	ok(w, map[string]interface{}{
		"per_call_default": h.config.BudgetPerCall,
		"daily_cap":        h.config.DailyBudget,
		"spent_today":      spentToday,
		"zone":             budget.ZoneFor(spentToday, h.config.DailyBudget).String(),
		"cumulative_cost":  cumulative,
	})
}

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.StatsSince(r.Context(), time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		fail(w, http.StatusInternalServerError, "database error")
		return
	}
	cumulative, err := h.db.CumulativeCost(r.Context())
	if err != nil {
		fail(w, http.StatusInternalServerError, "database error")
		return
	}
	ok(w, map[string]interface{}{
		"last_24h":        stats,
		"cumulative_cost": cumulative,
	})
}
