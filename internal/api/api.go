// Package api sets up the HTTP routes and middleware for CostWise's REST API.
package api

import (
	"net/http"

	"github.com/costwise/costwise/internal/api/handlers"
	"github.com/costwise/costwise/internal/auth"
	"github.com/costwise/costwise/internal/catalog"
	"github.com/costwise/costwise/internal/config"
	"github.com/costwise/costwise/internal/orchestrator"
	"github.com/costwise/costwise/internal/store"
)

// Deps holds all dependencies injected into the API handlers.
type Deps struct {
	DB      *store.DB
	Config  *config.Config
	Orch    *orchestrator.Orchestrator
	Catalog *catalog.Catalog
}

// SetupRoutes registers all HTTP routes on the given ServeMux.
// Uses Go 1.22 method+pattern routing syntax.
func SetupRoutes(mux *http.ServeMux, deps *Deps) {
	h := handlers.New(deps.DB, deps.Config, deps.Orch, deps.Catalog)

	requireKey := auth.NewKeyGuard(deps.Config.APIKeyHash)

	// ── Public routes ────────────────────────────────────────────────────────
	mux.HandleFunc("GET /health", h.Health)

	// ── Protected routes ─────────────────────────────────────────────────────
	// Runs
	mux.Handle("POST /api/run", requireKey(http.HandlerFunc(h.RunTask)))
	mux.Handle("POST /api/estimate", requireKey(http.HandlerFunc(h.EstimateTask)))
	mux.Handle("POST /api/route", requireKey(http.HandlerFunc(h.RouteTask)))
	mux.Handle("GET /api/runs", requireKey(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/runs/{id}", requireKey(http.HandlerFunc(h.GetRun)))

	// Catalog and spend
	mux.Handle("GET /api/models", requireKey(http.HandlerFunc(h.ListModels)))
	mux.Handle("GET /api/budget", requireKey(http.HandlerFunc(h.GetBudget)))
	mux.Handle("GET /api/stats", requireKey(http.HandlerFunc(h.GetStats)))
}
