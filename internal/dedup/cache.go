package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/platform/metrics"
)

// KeyPrefix namespaces every dedup key in the shared cache.
const KeyPrefix = "dedup:"

// Status is the state recorded for a fingerprint.
type Status string

// Possible dedup entry states
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Blocking reports whether an entry in this state prevents new work for the
// same fingerprint.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusCompleted
}

// Entry is the cached record for a fingerprint. ResultRef points at the
// artifact holding the output.
type Entry struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    Status    `json:"status"`
	ResultRef string    `json:"result_ref,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the key/value contract the cache is built on. Get returns
// ErrCacheMiss for absent or expired keys. SetNX stores only when the key is
// absent and reports whether it did.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// TTLConfig holds the retention of each entry state.
type TTLConfig struct {
	Pending   time.Duration
	Failed    time.Duration
	Completed map[domain.ArtifactKind]time.Duration
	// CompletedDefault applies to kinds missing from Completed.
	CompletedDefault time.Duration
}

// DefaultTTLConfig returns the standard retention policy.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Pending: 10 * time.Minute,
		Failed:  15 * time.Minute,
		Completed: map[domain.ArtifactKind]time.Duration{
			domain.KindQuiz:       24 * time.Hour,
			domain.KindFlashcards: 24 * time.Hour,
			domain.KindGuide:      12 * time.Hour,
			domain.KindSummary:    6 * time.Hour,
		},
		CompletedDefault: 6 * time.Hour,
	}
}

// TTL returns the retention for an entry of kind in status.
func (c TTLConfig) TTL(kind domain.ArtifactKind, status Status) time.Duration {
	switch status {
	case StatusPending:
		return c.Pending
	case StatusFailed:
		return c.Failed
	}
	if ttl, ok := c.Completed[kind]; ok {
		return ttl
	}
	return c.CompletedDefault
}

// Cache implements check-or-reserve deduplication over a Store.
type Cache struct {
	store  Store
	ttl    TTLConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewCache creates a Cache.
func NewCache(store Store, ttl TTLConfig, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "dedup_cache"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Key returns the cache key for a fingerprint of kind.
func Key(kind domain.ArtifactKind, fp Fingerprint) string {
	return KeyPrefix + string(kind) + ":" + string(fp)
}

// Get returns the entry for fp, or nil when none exists.
func (c *Cache) Get(ctx context.Context, kind domain.ArtifactKind, fp Fingerprint) (*Entry, error) {
	raw, err := c.store.Get(ctx, Key(kind, fp))
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dedup entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is treated as absent so it cannot block work forever.
		c.logger.WarnContext(ctx, "discarding unreadable dedup entry",
			"fingerprint", fp,
			"error", err)
		return nil, nil
	}
	return &entry, nil
}

// CheckOrReserve returns the blocking entry for fp when one exists. Otherwise
// it records a pending entry for jobID and reports reserved as true. A failed
// entry is removed first so it never blocks a retry. When two callers race for
// the same fingerprint only one of them gets reserved; the other receives the
// winner's entry.
func (c *Cache) CheckOrReserve(
	ctx context.Context,
	kind domain.ArtifactKind,
	fp Fingerprint,
	jobID uuid.UUID,
	resultRef string,
) (entry *Entry, reserved bool, err error) {
	key := Key(kind, fp)
	log := c.logger.With("fingerprint", fp, "kind", kind)

	existing, err := c.Get(ctx, kind, fp)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Status.Blocking() {
			log.DebugContext(ctx, "dedup hit", "status", existing.Status, "job_id", existing.JobID)
			metrics.RecordDedup(string(kind), "hit_"+string(existing.Status))
			return existing, false, nil
		}
		if err := c.store.Del(ctx, key); err != nil {
			return nil, false, fmt.Errorf("failed to clear failed dedup entry: %w", err)
		}
		log.DebugContext(ctx, "cleared failed dedup entry", "previous_job_id", existing.JobID)
	}

	pending := &Entry{
		JobID:     jobID,
		Status:    StatusPending,
		ResultRef: resultRef,
		UpdatedAt: c.now(),
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode dedup entry: %w", err)
	}

	ok, err := c.store.SetNX(ctx, key, raw, c.ttl.TTL(kind, StatusPending))
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve dedup entry: %w", err)
	}
	if ok {
		metrics.RecordDedup(string(kind), "reserved")
		return pending, true, nil
	}

	// Lost the race: another caller reserved between our read and write.
	winner, err := c.Get(ctx, kind, fp)
	if err != nil {
		return nil, false, err
	}
	if winner != nil && winner.Status.Blocking() {
		log.DebugContext(ctx, "dedup reservation lost to concurrent request", "job_id", winner.JobID)
		metrics.RecordDedup(string(kind), "hit_"+string(winner.Status))
		return winner, false, nil
	}

	// The winner vanished or failed in between; take the slot.
	if err := c.store.Set(ctx, key, raw, c.ttl.TTL(kind, StatusPending)); err != nil {
		return nil, false, fmt.Errorf("failed to reserve dedup entry: %w", err)
	}
	metrics.RecordDedup(string(kind), "reserved")
	return pending, true, nil
}

// Finalize records a terminal status for jobID's entry with the retention
// that status carries. An entry held by another job in a blocking state is
// left alone, so a late finalize from an expired job cannot clobber a newer
// reservation. The check and the write are not atomic.
func (c *Cache) Finalize(
	ctx context.Context,
	kind domain.ArtifactKind,
	fp Fingerprint,
	status Status,
	jobID uuid.UUID,
	resultRef string,
) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	current, err := c.Get(ctx, kind, fp)
	if err != nil {
		return err
	}
	if current != nil && current.JobID != jobID && current.Status.Blocking() {
		c.logger.DebugContext(ctx, "dedup entry owned by another job, not finalizing",
			"fingerprint", fp,
			"kind", kind,
			"job_id", jobID,
			"owner_job_id", current.JobID,
			"owner_status", current.Status)
		metrics.RecordDedup(string(kind), "finalize_skipped")
		return nil
	}

	raw, err := json.Marshal(Entry{
		JobID:     jobID,
		Status:    status,
		ResultRef: resultRef,
		UpdatedAt: c.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode dedup entry: %w", err)
	}

	if err := c.store.Set(ctx, Key(kind, fp), raw, c.ttl.TTL(kind, status)); err != nil {
		return fmt.Errorf("failed to finalize dedup entry: %w", err)
	}
	return nil
}

// Invalidate removes entries. The argument is either a single key or a glob
// pattern using '*'; the dedup prefix is added when missing, so "quiz:*"
// clears every quiz entry. It returns the number of removed entries.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return 0, fmt.Errorf("invalidation pattern cannot be empty")
	}
	if !strings.HasPrefix(pattern, KeyPrefix) {
		pattern = KeyPrefix + pattern
	}

	if !strings.ContainsAny(pattern, "*?[") {
		if _, err := c.store.Get(ctx, pattern); errors.Is(err, ErrCacheMiss) {
			return 0, nil
		}
		if err := c.store.Del(ctx, pattern); err != nil {
			return 0, fmt.Errorf("failed to invalidate dedup entry: %w", err)
		}
		return 1, nil
	}

	n, err := c.store.DeletePattern(ctx, pattern)
	if err != nil {
		return n, fmt.Errorf("failed to invalidate dedup entries: %w", err)
	}
	c.logger.InfoContext(ctx, "invalidated dedup entries", "pattern", pattern, "count", n)
	return n, nil
}
