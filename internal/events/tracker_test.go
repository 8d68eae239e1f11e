package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTrackerMonotonic(t *testing.T) {
	t.Parallel()
	tr := NewProgressTracker()
	job := uuid.New()

	_, changed := tr.Observe(&LifecycleEvent{JobID: job, Kind: KindStarted, Target: 12})
	assert.True(t, changed)
	tr.Observe(&LifecycleEvent{JobID: job, Kind: KindProgress, Current: 10, Target: 12})

	p, changed := tr.Observe(&LifecycleEvent{JobID: job, Kind: KindProgress, Current: 5, Target: 12})
	assert.False(t, changed, "late delivery of an older progress event")
	assert.Equal(t, 10, p.Current)

	p, _ = tr.Observe(&LifecycleEvent{JobID: job, Kind: KindProgress, Current: 10, Target: 12})
	assert.Equal(t, 10, p.Current)
	assert.False(t, p.Done())
}

func TestProgressTrackerTerminalSticks(t *testing.T) {
	t.Parallel()
	tr := NewProgressTracker()
	job := uuid.New()

	require.NoError(t, tr.HandleEvent(context.Background(),
		&LifecycleEvent{JobID: job, Kind: KindCompleted, Current: 12, Target: 12}))
	p, changed := tr.Observe(&LifecycleEvent{JobID: job, Kind: KindProgress, Current: 10, Target: 12})

	assert.False(t, changed)
	assert.Equal(t, KindCompleted, p.Kind)
	assert.Equal(t, 12, p.Current)
	assert.True(t, p.Done())
}

func TestProgressTrackerOrderIndependent(t *testing.T) {
	t.Parallel()
	job := uuid.New()
	seq := []*LifecycleEvent{
		{JobID: job, Kind: KindStarted, Target: 12},
		{JobID: job, Kind: KindProgress, Current: 5, Target: 12},
		{JobID: job, Kind: KindProgress, Current: 10, Target: 12},
		{JobID: job, Kind: KindProgress, Current: 12, Target: 12},
		{JobID: job, Kind: KindCompleted, Current: 12, Target: 12},
	}

	forward := NewProgressTracker()
	for _, ev := range seq {
		forward.Observe(ev)
	}
	backward := NewProgressTracker()
	for i := len(seq) - 1; i >= 0; i-- {
		backward.Observe(seq[i])
		backward.Observe(seq[i])
	}

	f, _ := forward.Get(job)
	b, _ := backward.Get(job)
	assert.Equal(t, f, b)

	backward.Forget(job)
	_, ok := backward.Get(job)
	assert.False(t, ok)
}
