package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the in-client retries for a single Generate call.
// Chunk level retries belong to the job queue; this only smooths over
// brief network or throttling errors.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: 2 * time.Second, MaxDelay: 20 * time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

// Do runs fn, retrying while it fails with a retryable error class. The
// final error is returned unwrapped so callers can match its class.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsRetryable(err) {
			return err
		}
		if logger != nil {
			logger.DebugContext(ctx, "retrying provider call",
				"attempt", attempt,
				"error", err)
		}
		return retry.RetryableError(err)
	})
}
