package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a request or entity fails validation.
	// Callers wrap it with the specific reason.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidKind is returned for an unknown artifact kind.
	ErrInvalidKind = errors.New("invalid artifact kind")

	// ErrMissingInput is returned when a request has no topic, content or sources.
	ErrMissingInput = errors.New("topic, content or sources required")

	// ErrTargetOutOfRange is returned when the requested item count is outside
	// the range supported for the artifact kind.
	ErrTargetOutOfRange = errors.New("target count out of range")

	// ErrInvalidItem is returned when a generated item does not satisfy the
	// shape of its artifact kind.
	ErrInvalidItem = errors.New("invalid item")

	// ErrInvalidArtifactStatus is returned for an unknown artifact status.
	ErrInvalidArtifactStatus = errors.New("invalid artifact status")
)
