package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/costwise/costwise/internal/orchestrator"
	"github.com/costwise/costwise/internal/router"
	"github.com/costwise/costwise/internal/store"
)

// runResponse is a finalized run record plus the human-readable summary
// block CLI and chat surfaces print verbatim.
type runResponse struct {
	*orchestrator.RunRecord
	Summary string `json:"summary"`
}

func applyDefaults(req *orchestrator.TaskRequest) {
	if req.Tier == 0 {
		req.Tier = 1
	}
	if req.OutputTokens == 0 {
		req.OutputTokens = 100
	}
}

// RunTask handles POST /api/run.
func (h *Handler) RunTask(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TaskRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	applyDefaults(&req)

	rec, err := h.orch.Execute(r.Context(), req)
	if err != nil {
		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) && rec != nil {
			// The run was still logged; return the record so callers can
			// see what it cost before failing.
			failData(w, http.StatusBadGateway, runErr.Error(),
				runResponse{RunRecord: rec, Summary: orchestrator.BuildRunSummary(rec)})
			return
		}
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, runResponse{RunRecord: rec, Summary: orchestrator.BuildRunSummary(rec)})
}

// EstimateTask handles POST /api/estimate. Estimates are never persisted.
func (h *Handler) EstimateTask(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TaskRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	applyDefaults(&req)

	rec, err := h.orch.Estimate(req)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, runResponse{RunRecord: rec, Summary: orchestrator.BuildRunSummary(rec)})
}

type routeInput struct {
	Level int    `json:"level"`
	Model string `json:"model"`
}

// RouteTask handles POST /api/route. It resolves a model without
// estimating or executing anything.
func (h *Handler) RouteTask(w http.ResponseWriter, r *http.Request) {
	var req routeInput
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Level == 0 {
		req.Level = 1
	}
	if req.Model == "" && !router.ValidTier(req.Level) {
		fail(w, http.StatusBadRequest, fmt.Sprintf("level must be between 1 and %d", router.MaxTier))
		return
	}
	d := h.orch.Route(req.Level, req.Model)
	ok(w, map[string]string{"model": d.Model, "reason": d.Reason})
}

// ListRuns handles GET /api/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 200 {
		limit = 200
	}

	runs, err := h.db.RecentRuns(r.Context(), limit)
	if err != nil {
		fail(w, http.StatusInternalServerError, "database error")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	ok(w, map[string]interface{}{"runs": runs})
}

// GetRun handles GET /api/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathID(r, "id"), 10, 64)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	run, err := h.db.GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		fail(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, "database error")
		return
	}
	ok(w, run)
}
