// Package handlers contains the HTTP handlers of the administrative API:
// manual sweep triggering, notification settings management, and read-only
// views over billing records and sweep history.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"duewatch/internal/core"
	"duewatch/internal/types"
)

// SweepRunner triggers a sweep on demand. Satisfied by the scheduler Driver.
type SweepRunner interface {
	TriggerManual(ctx context.Context, dryRun, force bool) (types.SweepSummary, error)
}

// SweepHistory lists recorded sweep executions.
type SweepHistory interface {
	ListRuns(ctx context.Context, limit int) ([]*types.SweepRun, error)
}

// SchedulerHandler exposes the manual trigger and the sweep history.
type SchedulerHandler struct {
	runner  SweepRunner
	history SweepHistory
	logger  *slog.Logger
}

func NewSchedulerHandler(runner SweepRunner, history SweepHistory, logger *slog.Logger) *SchedulerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchedulerHandler{runner: runner, history: history, logger: logger}
}

// RegisterRoutes mounts the scheduler endpoints on the given router.
func (h *SchedulerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/scheduler/run", h.HandleRun)
	r.Get("/sweeps", h.HandleListSweeps)
}

// RunRequest is the body of POST /v1/scheduler/run. Both fields default to
// false; an empty body is a plain immediate sweep.
type RunRequest struct {
	DryRun bool `json:"dry_run"`
	Force  bool `json:"force"`
}

// RunResponse is the structured result of a manual sweep.
type RunResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Result  types.SweepSummary `json:"result"`
}

// HandleRun triggers a sweep and reports its summary. Per-record failures are
// business outcomes, not errors: they appear in the summary with success
// still true. Only infrastructure faults (store unreachable, sweep already
// running) produce an error status.
func (h *SchedulerHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	summary, err := h.runner.TriggerManual(r.Context(), req.DryRun, req.Force)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	msg := "sweep completed"
	if req.DryRun {
		msg = "dry run completed"
	}
	if summary.Failed > 0 {
		msg += " with failures"
	}

	core.JSON(w, r, http.StatusOK, RunResponse{
		Success: true,
		Message: msg,
		Result:  summary,
	})
}

// HandleListSweeps returns recent sweep executions, newest first. The limit
// query parameter caps the page, defaulting to 50.
func (h *SchedulerHandler) HandleListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationFailed, "limit must be a positive integer", nil))
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if runs == nil {
		runs = []*types.SweepRun{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"sweeps": runs})
}
