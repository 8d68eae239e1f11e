package provider

import (
	"errors"
	"fmt"
)

// Error classes returned by provider clients. Clients wrap the underlying
// cause with one of these so the engine can tell retryable failures from
// terminal ones.
var (
	// ErrUnknownProvider is returned when no client is registered for an ID.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrProviderTimeout is returned when a call exceeds the invocation timeout.
	ErrProviderTimeout = errors.New("provider call took too long")

	// ErrTransient covers network failures and 5xx responses.
	ErrTransient = errors.New("transient provider failure")

	// ErrRateLimited is returned for throttling responses. It is retryable.
	ErrRateLimited = errors.New("provider rate limit reached")

	// ErrQuotaExceeded is returned when the account quota is used up. Retrying
	// does not help.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrContentBlocked is returned when the provider refuses on safety grounds.
	ErrContentBlocked = errors.New("content blocked by provider safety filters")

	// ErrInvalidRequest is returned when the provider rejects the request itself.
	ErrInvalidRequest = errors.New("provider rejected the request")

	// ErrEmptyResponse is returned when the provider answers with no text.
	ErrEmptyResponse = errors.New("provider returned an empty response")
)

// IsRetryable reports whether a failed call may succeed when attempted again.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrContentBlocked),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnknownProvider):
		return false
	case errors.Is(err, ErrTransient),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrProviderTimeout),
		errors.Is(err, ErrEmptyResponse):
		return true
	}
	return false
}

// StatusError classifies an HTTP status code into an error class.
func StatusError(status int, quota bool, msg string) error {
	switch {
	case status == 429 && quota:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, msg)
	case status == 429:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case status == 408 || status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrTransient, status, msg)
	case status == 402:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrInvalidRequest, status, msg)
	}
}
