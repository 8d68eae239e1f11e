package generation

import (
	"errors"

	"github.com/phrazzld/scry-forge/internal/parser"
	"github.com/phrazzld/scry-forge/internal/provider"
)

// Common errors returned by the generation package
var (
	// ErrArtifactNotFound is returned when an artifact does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNoItems is returned when the first chunk yields no items at all.
	ErrNoItems = errors.New("generation produced no items")

	// ErrStalled is returned when a later chunk makes no progress or the
	// job exceeds the chunk ceiling.
	ErrStalled = errors.New("generation stalled")

	// ErrAllItemsInvalid is returned when the provider returned items but
	// none of them passed validation. It is retryable.
	ErrAllItemsInvalid = errors.New("no returned item passed validation")

	// ErrSourcesUnavailable is returned when a request relies on sources
	// alone and no source resolver is configured.
	ErrSourcesUnavailable = errors.New("sources cannot be resolved")

	// ErrNoCache is returned by cache operations when no dedup cache is wired.
	ErrNoCache = errors.New("dedup cache not configured")
)

// User facing failure messages. They are stored on the artifact and sent
// with the failed event, so they never carry provider or internal detail.
const (
	msgTimeout   = "Generation took too long. Please try again."
	msgBlocked   = "The content could not be processed because it was flagged by safety filters."
	msgQuota     = "The generation service is over capacity. Please try again later."
	msgNoItems   = "We could not generate any items from this content."
	msgStalled   = "Generation stopped making progress before reaching the requested size."
	msgParse     = "The generated content could not be read. Please try again."
	msgInvalid   = "The generation request was rejected by the provider."
	msgSources   = "The uploaded sources could not be read."
	msgTransient = "The generation service is temporarily unavailable. Please try again."
	msgGeneric   = "Generation failed. Please try again."
)

// UserMessage maps an error to a fixed, user-safe sentence.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, provider.ErrProviderTimeout):
		return msgTimeout
	case errors.Is(err, provider.ErrContentBlocked):
		return msgBlocked
	case errors.Is(err, provider.ErrQuotaExceeded):
		return msgQuota
	case errors.Is(err, ErrNoItems):
		return msgNoItems
	case errors.Is(err, ErrStalled):
		return msgStalled
	case errors.Is(err, ErrSourcesUnavailable):
		return msgSources
	case errors.Is(err, parser.ErrExhausted), errors.Is(err, ErrAllItemsInvalid):
		return msgParse
	case errors.Is(err, provider.ErrInvalidRequest), errors.Is(err, provider.ErrUnknownProvider):
		return msgInvalid
	case errors.Is(err, provider.ErrTransient), errors.Is(err, provider.ErrRateLimited),
		errors.Is(err, provider.ErrEmptyResponse):
		return msgTransient
	}
	return msgGeneric
}
