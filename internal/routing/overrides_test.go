package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOverrides(t *testing.T) {
	t.Parallel()

	t.Run("nested document with weak typing", func(t *testing.T) {
		t.Parallel()
		table, err := DecodeOverrides(map[string]any{
			"tasks": map[string]any{
				"quiz_generation": map[string]any{
					"Provider":    "OpenAI",
					"profile":     "premium",
					"temperature": "0.25",
				},
			},
		})
		require.NoError(t, err)
		entry := table.Tasks["quiz_generation"]
		assert.Equal(t, "openai", entry.Provider)
		assert.Equal(t, "premium", entry.Profile)
		require.NotNil(t, entry.Temperature)
		assert.InDelta(t, 0.25, *entry.Temperature, 1e-9)
	})

	t.Run("flat document with bare provider", func(t *testing.T) {
		t.Parallel()
		table, err := DecodeOverrides(map[string]any{"summary_generation": "gemini"})
		require.NoError(t, err)
		assert.Equal(t, "gemini", table.Tasks["summary_generation"].Provider)
		assert.Nil(t, table.Tasks["summary_generation"].Temperature)
	})

	t.Run("entries without provider are ignored", func(t *testing.T) {
		t.Parallel()
		table, err := DecodeOverrides(map[string]any{"quiz_generation": map[string]any{"profile": "fast"}})
		require.NoError(t, err)
		assert.Empty(t, table.Tasks)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeOverrides(map[string]any{"quiz_generation": 42})
		assert.Error(t, err)

		_, err = DecodeOverrides(map[string]any{"tasks": "nope"})
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		table, err := DecodeOverrides(nil)
		require.NoError(t, err)
		assert.NotNil(t, table.Tasks)
	})
}

type stubSource struct {
	calls atomic.Int32
	fn    func() (map[string]any, error)
}

func (s *stubSource) RoutingOverrides(context.Context) (map[string]any, error) {
	s.calls.Add(1)
	return s.fn()
}

func TestSnapshotCache(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	provider := "openai"
	var fail atomic.Bool
	src := &stubSource{fn: func() (map[string]any, error) {
		if fail.Load() {
			return nil, errors.New("db down")
		}
		return map[string]any{"quiz_generation": provider}, nil
	}}

	cache := NewSnapshotCache(testPolicy(), src, time.Minute, logger)
	now := time.Now()
	cache.now = func() time.Time { return now }

	snap := cache.Snapshot(ctx)
	assert.Equal(t, "openai", snap.Overrides.Tasks["quiz_generation"].Provider)
	assert.Equal(t, int32(1), src.calls.Load())

	cache.Snapshot(ctx)
	assert.Equal(t, int32(1), src.calls.Load(), "cached within the interval")

	// A failing refresh keeps the last good table.
	fail.Store(true)
	now = now.Add(2 * time.Minute)
	snap = cache.Snapshot(ctx)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, "openai", snap.Overrides.Tasks["quiz_generation"].Provider)

	// A live change is visible after the interval without a restart.
	fail.Store(false)
	provider = "gemini"
	now = now.Add(2 * time.Minute)
	snap = cache.Snapshot(ctx)
	assert.Equal(t, "gemini", snap.Overrides.Tasks["quiz_generation"].Provider)

	d := NewRouter(cache).Route(ctx, "quiz_generation", "", false)
	assert.Equal(t, "gemini", d.Provider)
	assert.Equal(t, SourceOverride, d.Source)
}

func TestSnapshotCache_NoSource(t *testing.T) {
	t.Parallel()

	cache := NewSnapshotCache(nil, nil, 0, nil)
	d := NewRouter(cache).Route(context.Background(), "flashcard_generation", "", false)
	assert.Equal(t, "gemini", d.Provider)
	assert.Equal(t, SourceDefault, d.Source)
}
