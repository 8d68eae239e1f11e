package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/scry-forge/internal/api/shared"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
	"github.com/phrazzld/scry-forge/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, generation.ErrArtifactNotFound),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	case store.IsDuplicateError(err):
		return http.StatusConflict

	case errors.Is(err, generation.ErrNoCache):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, domain.ErrInvalidKind):
		return "Unsupported artifact kind"
	case errors.Is(err, domain.ErrMissingInput):
		return "A topic, content or sources are required"
	case errors.Is(err, domain.ErrTargetOutOfRange):
		return "Requested item count is out of range for this kind"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid generation request"
	case errors.Is(err, generation.ErrArtifactNotFound),
		store.IsNotFoundError(err):
		return "Artifact not found"
	case errors.Is(err, generation.ErrNoCache):
		return "Result cache is not available"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err. A non-empty message replaces
// the default safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}
