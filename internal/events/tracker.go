package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Progress is the tracked state of one job.
type Progress struct {
	JobID      uuid.UUID
	ArtifactID uuid.UUID
	Current    int
	Target     int
	Kind       Kind
	Message    string
}

// Done reports whether the job reached a terminal kind.
func (p Progress) Done() bool { return p.Kind.Terminal() }

// ProgressTracker folds lifecycle events into per-job progress. Current
// only grows and a terminal kind is never replaced, so duplicated or
// reordered deliveries converge on the same state.
type ProgressTracker struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]Progress
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{jobs: make(map[uuid.UUID]Progress)}
}

// Observe applies ev and returns the resulting state. changed is false
// when the event carried nothing new.
func (t *ProgressTracker) Observe(ev *LifecycleEvent) (p Progress, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, seen := t.jobs[ev.JobID]
	next := cur
	if !seen {
		next = Progress{JobID: ev.JobID, ArtifactID: ev.ArtifactID, Kind: ev.Kind}
	}
	if ev.Target > next.Target {
		next.Target = ev.Target
	}
	if ev.Current > next.Current {
		next.Current = ev.Current
	}
	if !next.Kind.Terminal() && (ev.Kind.Terminal() || ev.Kind == KindProgress) {
		next.Kind = ev.Kind
	}
	if ev.Kind.Terminal() && ev.Kind == next.Kind && ev.Message != "" {
		next.Message = ev.Message
	}

	t.jobs[ev.JobID] = next
	return next, !seen || next != cur
}

// HandleEvent implements EventHandler.
func (t *ProgressTracker) HandleEvent(_ context.Context, ev *LifecycleEvent) error {
	t.Observe(ev)
	return nil
}

// Get returns the tracked state of a job.
func (t *ProgressTracker) Get(jobID uuid.UUID) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.jobs[jobID]
	return p, ok
}

// Forget drops a job.
func (t *ProgressTracker) Forget(jobID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, jobID)
}
