package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/api/shared"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
)

// GenerationService is the part of generation.Service the handler needs.
type GenerationService interface {
	Request(ctx context.Context, req *domain.GenerationRequest) (*generation.Ticket, error)
	Status(ctx context.Context, artifactID uuid.UUID) (*domain.Artifact, error)
	Invalidate(ctx context.Context, pattern string) (int, error)
}

// GenerationHandler serves the generation endpoints.
type GenerationHandler struct {
	service GenerationService
	logger  *slog.Logger
}

// NewGenerationHandler creates a GenerationHandler.
func NewGenerationHandler(service GenerationService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandler{
		service: service,
		logger:  logger.With("component", "generation_handler"),
	}
}

// Create handles POST /api/generations. A new job answers 202 Accepted; a
// request matching a running or finished job answers 200 with that job.
func (h *GenerationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateGenerationRequest
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	ticket, err := h.service.Request(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).InfoContext(r.Context(), "generation requested",
		"job_id", ticket.JobID,
		"kind", req.Kind,
		"deduplicated", ticket.Deduplicated)

	status := http.StatusAccepted
	if ticket.Deduplicated {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, ticketToResponse(ticket))
}

// Get handles GET /api/generations/{id}.
func (h *GenerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid artifact ID")
		return
	}
	artifact, err := h.service.Status(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, artifactToResponse(artifact))
}

// InvalidateCache handles DELETE /api/generations/cache?pattern=.
func (h *GenerationHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	pattern := strings.TrimSpace(r.URL.Query().Get("pattern"))
	if pattern == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "pattern query parameter is required")
		return
	}
	n, err := h.service.Invalidate(r.Context(), pattern)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, InvalidateResponse{Pattern: pattern, Removed: n})
}
