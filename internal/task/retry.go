package task

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy controls how failed jobs are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with reasonable defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    2 * time.Minute,
	}
}

// Delay returns the wait before the attempt following the given number of
// failed attempts: BaseDelay, 2*BaseDelay, 4*BaseDelay... capped at MaxDelay.
func (p RetryPolicy) Delay(failedAttempts int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	var d time.Duration
	for i := 0; i < failedAttempts; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	if d <= 0 {
		d = base
	}
	return d
}
