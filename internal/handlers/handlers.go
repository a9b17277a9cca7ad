package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"menucost/internal/cascade"
	"menucost/internal/costing"
	applog "menucost/internal/log"
	"menucost/internal/pricing"
	"menucost/internal/store"
	"menucost/internal/units"
	"menucost/models"
)

const maxBodyBytes = 1 << 20

var (
	costStore    *store.Store
	orchestrator *cascade.Orchestrator
)

// Configure wires the store and the recalculation orchestrator used by every
// workspace handler.
func Configure(s *store.Store, orch *cascade.Orchestrator) {
	costStore = s
	orchestrator = orch
}

func available(w http.ResponseWriter, r *http.Request) bool {
	if costStore == nil || orchestrator == nil {
		applog.Debug(r.Context(), "workspace request without configured store")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return false
	}
	return true
}

// workspaceFromPath resolves the {slug} path value, answering 404 itself when
// the workspace does not exist.
func workspaceFromPath(w http.ResponseWriter, r *http.Request) (models.Workspace, bool) {
	if !available(w, r) {
		return models.Workspace{}, false
	}
	slug := r.PathValue("slug")
	ws, err := costStore.WorkspaceBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			applog.Debug(r.Context(), "unknown workspace", "slug", slug)
			writeJSONError(w, http.StatusNotFound, "workspace not found")
			return models.Workspace{}, false
		}
		applog.Error(r.Context(), "failed to load workspace", "slug", slug, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load workspace")
		return models.Workspace{}, false
	}
	return ws, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := r.PathValue(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		applog.Debug(r.Context(), "invalid path identifier", "name", name, "value", raw)
		writeJSONError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return uint(value), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		applog.Debug(r.Context(), "invalid request payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP statuses. Anything the caller can fix
// is a 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cascade.ErrWorkspaceBusy):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, costing.ErrCyclicDependency),
		errors.Is(err, costing.ErrOrphanedSizeReference),
		errors.Is(err, costing.ErrInvalidSizeGroup),
		errors.Is(err, costing.ErrMissingComponent),
		errors.Is(err, units.ErrIncompatibleMeasurementType),
		errors.Is(err, units.ErrUnknownUnit),
		errors.Is(err, units.ErrInvalidConversionFactor),
		errors.Is(err, units.ErrBaseUnitImmutable),
		errors.Is(err, pricing.ErrInvalidPricingInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		applog.Error(r.Context(), msg, "error", err)
		writeJSONError(w, status, msg)
		return
	}
	applog.Debug(r.Context(), msg, "error", err, "status", status)
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
