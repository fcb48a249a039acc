// Package handlers provides HTTP handler implementations for the CostWise REST API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/costwise/costwise/internal/catalog"
	"github.com/costwise/costwise/internal/config"
	"github.com/costwise/costwise/internal/orchestrator"
	"github.com/costwise/costwise/internal/store"
)

// maxBodyBytes caps request bodies. Task prompts are text, not uploads.
const maxBodyBytes = 1 << 20

// Handler holds all shared dependencies for API handler methods.
type Handler struct {
	db      *store.DB
	config  *config.Config
	orch    *orchestrator.Orchestrator
	catalog *catalog.Catalog
}

// New creates a Handler with all dependencies.
func New(database *store.DB, cfg *config.Config, orch *orchestrator.Orchestrator, cat *catalog.Catalog) *Handler {
	return &Handler{
		db:      database,
		config:  cfg,
		orch:    orch,
		catalog: cat,
	}
}

// ── Response helpers ──────────────────────────────────────────────────────────

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response{Success: true, Data: data})
}

func fail(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response{Success: false, Error: msg})
}

// failData reports an error while still returning the partial result, so
// clients can see how far a run got and what it cost before failing.
func failData(w http.ResponseWriter, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response{Success: false, Data: data, Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request, name string) string {
	return r.PathValue(name)
}
