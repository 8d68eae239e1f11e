package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/scry-forge/internal/platform/metrics"
)

// DefaultRefreshInterval is how long a fetched override table is reused.
const DefaultRefreshInterval = 30 * time.Second

// OverrideSource returns the raw admin routing overrides.
type OverrideSource interface {
	RoutingOverrides(ctx context.Context) (map[string]any, error)
}

// SnapshotCache pulls the override table from an OverrideSource and reuses
// it for a short interval. A failed refresh keeps serving the last good
// table.
type SnapshotCache struct {
	policy   *Policy
	source   OverrideSource
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	current   Snapshot
	fetchedAt time.Time
}

// NewSnapshotCache creates a SnapshotCache. A nil source yields snapshots
// with no overrides.
func NewSnapshotCache(policy *Policy, source OverrideSource, interval time.Duration, logger *slog.Logger) *SnapshotCache {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{
		policy:   policy,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "routing_snapshot"),
		now:      time.Now,
		current:  Snapshot{Policy: policy, Overrides: OverrideTable{Tasks: map[string]OverrideEntry{}}},
	}
}

// Snapshot returns the current configuration, refreshing the override
// table when it is older than the refresh interval.
func (c *SnapshotCache) Snapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return c.current
	}
	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.interval {
		return c.current
	}

	// Stamp the attempt first so a failing source is not hammered.
	c.fetchedAt = c.now()

	raw, err := c.source.RoutingOverrides(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to refresh routing overrides, keeping last snapshot", "error", err)
		return c.current
	}
	table, err := DecodeOverrides(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "invalid routing overrides, keeping last snapshot", "error", err)
		return c.current
	}

	c.current = Snapshot{Policy: c.policy, Overrides: table}
	c.logger.DebugContext(ctx, "routing overrides refreshed", "overridden_tasks", len(table.Tasks))
	return c.current
}

// Expire forces the next Snapshot call to refetch the override table.
func (c *SnapshotCache) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

// Router resolves routes against the live snapshot.
type Router struct {
	cache *SnapshotCache
}

// NewRouter creates a Router.
func NewRouter(cache *SnapshotCache) *Router {
	return &Router{cache: cache}
}

// Route takes a fresh snapshot and resolves task against it.
func (r *Router) Route(ctx context.Context, task string, complexity Complexity, multimodal bool) Decision {
	d := Resolve(r.cache.Snapshot(ctx), task, complexity, multimodal)
	metrics.RecordRoutingDecision(string(d.Source), d.Provider)
	return d
}
