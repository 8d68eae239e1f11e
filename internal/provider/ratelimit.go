package provider

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterPool keeps one token bucket per provider model.
type RateLimiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rates    map[string]int
}

// NewRateLimiterPool creates an empty pool.
func NewRateLimiterPool() *RateLimiterPool {
	return &RateLimiterPool{
		limiters: make(map[string]*rate.Limiter),
		rates:    make(map[string]int),
	}
}

// GetOrCreate returns the limiter for key, creating it at requestsPerMinute.
// An existing limiter keeps its original rate.
func (p *RateLimiterPool) GetOrCreate(key string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.limiters[key]; ok {
		if existing := p.rates[key]; existing != requestsPerMinute {
			slog.Warn("rate limiter already exists with different rate, keeping existing",
				"key", key,
				"existing_rpm", existing,
				"requested_rpm", requestsPerMinute)
		}
		return limiter
	}

	burst := max(1, requestsPerMinute/5)
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	p.limiters[key] = limiter
	p.rates[key] = requestsPerMinute
	return limiter
}

// Wait blocks until the limiter for key admits one request.
func (p *RateLimiterPool) Wait(ctx context.Context, key string, requestsPerMinute int) error {
	return p.GetOrCreate(key, requestsPerMinute).Wait(ctx)
}
