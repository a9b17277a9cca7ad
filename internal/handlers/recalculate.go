package handlers

import (
	"context"
	"net/http"
	"time"

	"menucost/internal/cascade"
	applog "menucost/internal/log"
	"menucost/models"
)

type recalculation func(ctx context.Context, workspaceID uint) (cascade.Result, error)

func recalculationFor(target string) (recalculation, bool) {
	switch target {
	case "recipes":
		return orchestrator.RecalculateAllRecipeCosts, true
	case "products":
		return orchestrator.RecalculateAllProductCosts, true
	case "variations":
		return orchestrator.RecalculateAllVariations, true
	}
	return nil, false
}

// Recalculate runs one bulk recalculation of the workspace and relays its
// result. A job that ran, even with entity failures, answers 200.
func Recalculate(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	target := r.PathValue("target")
	run, ok := recalculationFor(target)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown recalculation target")
		return
	}

	applog.Debug(r.Context(), "recalculation requested", "workspace", ws.Slug, "target", target)
	result, err := run(r.Context(), ws.ID)
	if err != nil {
		applog.Warn(r.Context(), "recalculation failed", "workspace", ws.Slug, "target", target, "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type jobResponse struct {
	ID         string                `json:"id"`
	Kind       string                `json:"kind"`
	State      models.JobState       `json:"state"`
	Updated    int                   `json:"updated"`
	Unchanged  int                   `json:"unchanged"`
	Failed     int                   `json:"failed"`
	Errors     []cascade.EntityError `json:"errors"`
	CreatedAt  time.Time             `json:"created_at"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
}

// Job reports a stored recalculation job.
func Job(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	job, err := costStore.Job(r.Context(), ws.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, "unable to load job", err)
		return
	}
	errs, err := cascade.DecodeJobErrors(job)
	if err != nil {
		applog.Error(r.Context(), "failed to decode job errors", "job", job.ID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load job")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		ID:         job.ID,
		Kind:       job.Kind,
		State:      job.State,
		Updated:    job.Updated,
		Unchanged:  job.Unchanged,
		Failed:     job.Failed,
		Errors:     errs,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	})
}

// Overhead reports the workspace fixed costs spread over its labor hours.
func Overhead(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	report, err := costStore.Overhead(r.Context(), ws.ID)
	if err != nil {
		writeError(w, r, "unable to compute overhead", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
