// Package provider defines the contract for calling an LLM backend and the
// Invoker that routes a call to the registered client for a provider ID,
// bounded by a timeout and a client side rate limit.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/scry-forge/internal/platform/metrics"
)

// DefaultTimeout bounds a single provider call. Generation is slow, so the
// ceiling is measured in minutes.
const DefaultTimeout = 3 * time.Minute

// Options tunes a single call.
type Options struct {
	Temperature float64
	// JSON asks the provider for a JSON document when it supports it.
	JSON bool
	// Schema is an optional JSON schema describing the expected output.
	Schema    map[string]any
	MaxTokens int
}

// Client is an LLM backend.
type Client interface {
	// Name returns the provider ID the client serves.
	Name() string
	// Generate returns the raw text produced for prompt.
	Generate(ctx context.Context, model, prompt string, opts Options) (string, error)
}

// Registry maps provider IDs to clients. IDs are case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates a Registry holding clients.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client)}
	for _, c := range clients {
		r.Register(c)
	}
	return r
}

// Register adds or replaces the client for its provider ID.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(c.Name())] = c
}

// Get returns the client for id.
func (r *Registry) Get(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(id))]
	return c, ok
}

// Names returns the registered provider IDs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	Timeout time.Duration
	// RequestsPerMinute limits calls per provider; zero or missing means
	// unlimited.
	RequestsPerMinute map[string]int
}

// Invoker performs provider calls.
type Invoker struct {
	registry *Registry
	limiters *RateLimiterPool
	config   InvokerConfig
	logger   *slog.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(registry *Registry, config InvokerConfig, logger *slog.Logger) *Invoker {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		registry: registry,
		limiters: NewRateLimiterPool(),
		config:   config,
		logger:   logger.With("component", "provider_invoker"),
	}
}

// Invoke sends prompt to modelID on providerID. A call that outlives the
// configured timeout fails with ErrProviderTimeout.
func (i *Invoker) Invoke(ctx context.Context, providerID, modelID, prompt string, opts Options) (string, error) {
	client, ok := i.registry.Get(providerID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}

	if rpm := i.config.RequestsPerMinute[strings.ToLower(providerID)]; rpm > 0 {
		waitStart := time.Now()
		if err := i.limiters.Wait(ctx, providerID+":"+modelID, rpm); err != nil {
			return "", fmt.Errorf("%w: rate limiter wait: %v", ErrTransient, err)
		}
		metrics.RecordRateLimiterWait(providerID, time.Since(waitStart))
	}

	callCtx, cancel := context.WithTimeout(ctx, i.config.Timeout)
	defer cancel()

	start := time.Now()
	text, err := client.Generate(callCtx, modelID, prompt, opts)
	elapsed := time.Since(start)

	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s", ErrProviderTimeout, i.config.Timeout)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordProviderCall(providerID, modelID, status, elapsed)

	if err != nil {
		i.logger.WarnContext(ctx, "provider call failed",
			"provider", providerID,
			"model", modelID,
			"duration_ms", elapsed.Milliseconds(),
			"retryable", IsRetryable(err),
			"error", err)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrEmptyResponse, providerID, modelID)
	}

	i.logger.DebugContext(ctx, "provider call succeeded",
		"provider", providerID,
		"model", modelID,
		"duration_ms", elapsed.Milliseconds(),
		"response_length", len(text))
	return text, nil
}
