package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-forge/internal/api/shared"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	"github.com/phrazzld/scry-forge/internal/platform/postgres"
	"github.com/phrazzld/scry-forge/internal/routing"
)

// SettingsStore reads and writes admin settings documents.
type SettingsStore interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Put(ctx context.Context, key string, value any) error
}

// AdminHandler serves the routing override endpoints.
type AdminHandler struct {
	settings SettingsStore
	// snapshots is expired after a write so the new table applies at once.
	snapshots interface{ Expire() }
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler. snapshots may be nil.
func NewAdminHandler(settings SettingsStore, snapshots interface{ Expire() }, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		settings:  settings,
		snapshots: snapshots,
		logger:    logger.With("component", "admin_handler"),
	}
}

// GetRoutingOverrides handles GET /api/admin/routing-overrides.
func (h *AdminHandler) GetRoutingOverrides(w http.ResponseWriter, r *http.Request) {
	raw := map[string]any{}
	if _, err := h.settings.Get(r.Context(), postgres.RoutingOverridesKey, &raw); err != nil {
		HandleAPIError(w, r, err, "Failed to read routing overrides")
		return
	}
	table, err := routing.DecodeOverrides(raw)
	if err != nil {
		// A stored table that no longer decodes is still shown so it can be fixed.
		shared.RespondWithJSON(w, r, http.StatusOK, RoutingOverridesResponse{Overrides: raw})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RoutingOverridesResponse{Overrides: raw, Tasks: len(table.Tasks)})
}

// PutRoutingOverrides handles PUT /api/admin/routing-overrides. The body
// replaces the whole table and must decode as one.
func (h *AdminHandler) PutRoutingOverrides(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := shared.DecodeJSON(w, r, &raw); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if raw == nil {
		raw = map[string]any{}
	}
	table, err := routing.DecodeOverrides(raw)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid routing overrides", err)
		return
	}

	if err := h.settings.Put(r.Context(), postgres.RoutingOverridesKey, raw); err != nil {
		HandleAPIError(w, r, err, "Failed to store routing overrides")
		return
	}
	if h.snapshots != nil {
		h.snapshots.Expire()
	}

	logger.FromContextOrDefault(r.Context(), h.logger).InfoContext(r.Context(), "routing overrides updated",
		"tasks", len(table.Tasks))
	shared.RespondWithJSON(w, r, http.StatusOK, RoutingOverridesResponse{Overrides: raw, Tasks: len(table.Tasks)})
}
