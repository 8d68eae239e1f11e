package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCache_CheckOrReserve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reserves when empty", func(t *testing.T) {
		t.Parallel()
		cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())
		jobID := uuid.New()

		entry, reserved, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp1", jobID, "artifact-1")
		require.NoError(t, err)
		assert.True(t, reserved)
		assert.Equal(t, StatusPending, entry.Status)
		assert.Equal(t, jobID, entry.JobID)

		stored, err := cache.Get(ctx, domain.KindQuiz, "fp1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "artifact-1", stored.ResultRef)
	})

	t.Run("pending entry blocks", func(t *testing.T) {
		t.Parallel()
		cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())
		first := uuid.New()

		_, reserved, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", first, "a1")
		require.NoError(t, err)
		require.True(t, reserved)

		entry, reserved, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", uuid.New(), "a2")
		require.NoError(t, err)
		assert.False(t, reserved)
		assert.Equal(t, first, entry.JobID)
		assert.Equal(t, "a1", entry.ResultRef)
	})

	t.Run("completed entry blocks", func(t *testing.T) {
		t.Parallel()
		cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())
		jobID := uuid.New()
		require.NoError(t, cache.Finalize(ctx, domain.KindGuide, "fp", StatusCompleted, jobID, "a1"))

		entry, reserved, err := cache.CheckOrReserve(ctx, domain.KindGuide, "fp", uuid.New(), "a2")
		require.NoError(t, err)
		assert.False(t, reserved)
		assert.Equal(t, StatusCompleted, entry.Status)
	})

	t.Run("failed entry does not block", func(t *testing.T) {
		t.Parallel()
		cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())
		require.NoError(t, cache.Finalize(ctx, domain.KindQuiz, "fp", StatusFailed, uuid.New(), "a1"))

		retry := uuid.New()
		entry, reserved, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", retry, "a2")
		require.NoError(t, err)
		assert.True(t, reserved)
		assert.Equal(t, retry, entry.JobID)
	})

	t.Run("kinds do not collide", func(t *testing.T) {
		t.Parallel()
		cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())
		_, reserved, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", uuid.New(), "a1")
		require.NoError(t, err)
		require.True(t, reserved)

		_, reserved, err = cache.CheckOrReserve(ctx, domain.KindSummary, "fp", uuid.New(), "a2")
		require.NoError(t, err)
		assert.True(t, reserved)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		t.Parallel()
		store := &failingStore{err: errors.New("connection refused")}
		cache := NewCache(store, DefaultTTLConfig(), testLogger())

		_, _, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", uuid.New(), "a1")
		assert.Error(t, err)
	})
}

func TestCache_ConcurrentIdenticalRequests(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())

	const n = 50
	var reservedCount atomic.Int32
	jobIDs := make(chan uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, reserved, err := cache.CheckOrReserve(ctx, domain.KindFlashcards, "same", uuid.New(), "ref")
			if !assert.NoError(t, err) {
				return
			}
			if reserved {
				reservedCount.Add(1)
			}
			jobIDs <- entry.JobID
		}()
	}
	wg.Wait()
	close(jobIDs)

	assert.Equal(t, int32(1), reservedCount.Load(), "exactly one caller starts work")

	seen := map[uuid.UUID]struct{}{}
	for id := range jobIDs {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1, "all callers observe the same job")
}

func TestCache_PendingExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	cache := NewCache(store, DefaultTTLConfig(), testLogger())

	_, reserved, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", uuid.New(), "a1")
	require.NoError(t, err)
	require.True(t, reserved)

	now = now.Add(11 * time.Minute)

	_, reserved, err = cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", uuid.New(), "a2")
	require.NoError(t, err)
	assert.True(t, reserved, "stale pending entry must not block forever")
}

func TestCache_Finalize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())

	err := cache.Finalize(ctx, domain.KindQuiz, "fp", StatusPending, uuid.New(), "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	jobID := uuid.New()
	require.NoError(t, cache.Finalize(ctx, domain.KindQuiz, "fp", StatusCompleted, jobID, "a1"))
	entry, err := cache.Get(ctx, domain.KindQuiz, "fp")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, jobID, entry.JobID)
}

func TestCache_FinalizeLeavesNewerReservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	cache := NewCache(store, DefaultTTLConfig(), testLogger())

	stale := uuid.New()
	_, reserved, err := cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", stale, "a1")
	require.NoError(t, err)
	require.True(t, reserved)

	now = now.Add(11 * time.Minute)

	fresh := uuid.New()
	_, reserved, err = cache.CheckOrReserve(ctx, domain.KindQuiz, "fp", fresh, "a2")
	require.NoError(t, err)
	require.True(t, reserved)

	// The stale job finishes late.
	require.NoError(t, cache.Finalize(ctx, domain.KindQuiz, "fp", StatusFailed, stale, "a1"))

	entry, err := cache.Get(ctx, domain.KindQuiz, "fp")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, fresh, entry.JobID)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, "a2", entry.ResultRef)

	require.NoError(t, cache.Finalize(ctx, domain.KindQuiz, "fp", StatusCompleted, fresh, "a2"))
	entry, err = cache.Get(ctx, domain.KindQuiz, "fp")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, fresh, entry.JobID)
}

func TestCache_FinalizeReplacesFailedEntryOfAnotherJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())

	require.NoError(t, cache.Finalize(ctx, domain.KindQuiz, "fp", StatusFailed, uuid.New(), "a1"))

	jobID := uuid.New()
	require.NoError(t, cache.Finalize(ctx, domain.KindQuiz, "fp", StatusCompleted, jobID, "a2"))
	entry, err := cache.Get(ctx, domain.KindQuiz, "fp")
	require.NoError(t, err)
	assert.Equal(t, jobID, entry.JobID)
	assert.Equal(t, StatusCompleted, entry.Status)
}

func TestTTLConfig_TTL(t *testing.T) {
	t.Parallel()
	cfg := DefaultTTLConfig()

	assert.Equal(t, 10*time.Minute, cfg.TTL(domain.KindQuiz, StatusPending))
	assert.Equal(t, 15*time.Minute, cfg.TTL(domain.KindQuiz, StatusFailed))
	assert.Equal(t, 24*time.Hour, cfg.TTL(domain.KindQuiz, StatusCompleted))
	assert.Equal(t, 24*time.Hour, cfg.TTL(domain.KindFlashcards, StatusCompleted))
	assert.Equal(t, 12*time.Hour, cfg.TTL(domain.KindGuide, StatusCompleted))
	assert.Equal(t, 6*time.Hour, cfg.TTL(domain.KindSummary, StatusCompleted))
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := NewCache(NewMemoryStore(), DefaultTTLConfig(), testLogger())

	for _, fp := range []Fingerprint{"a", "b"} {
		require.NoError(t, cache.Finalize(ctx, domain.KindQuiz, fp, StatusCompleted, uuid.New(), ""))
	}
	require.NoError(t, cache.Finalize(ctx, domain.KindSummary, "c", StatusCompleted, uuid.New(), ""))

	n, err := cache.Invalidate(ctx, "quiz:a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = cache.Invalidate(ctx, "quiz:a")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "missing key removes nothing")

	n, err = cache.Invalidate(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = cache.Invalidate(ctx, "  ")
	assert.Error(t, err)
}

type failingStore struct{ err error }

func (f *failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f *failingStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, f.err
}
func (f *failingStore) Del(context.Context, ...string) error { return f.err }
func (f *failingStore) DeletePattern(context.Context, string) (int, error) {
	return 0, f.err
}
