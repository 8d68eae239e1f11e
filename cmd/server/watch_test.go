package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(jobID uuid.UUID, kind events.Kind, current, target int) *events.LifecycleEvent {
	return &events.LifecycleEvent{
		EventID: uuid.New(),
		Name:    events.EventName(kind),
		Kind:    kind,
		JobID:   jobID,
		Current: current,
		Target:  target,
	}
}

func TestJobWatcher_Completes(t *testing.T) {
	var out bytes.Buffer
	jobID := uuid.New()
	w := newJobWatcher(jobID, &out)
	ctx := context.Background()

	require.NoError(t, w.HandleEvent(ctx, event(jobID, events.KindStarted, 0, 10)))
	require.NoError(t, w.HandleEvent(ctx, event(uuid.New(), events.KindFailed, 0, 10)))
	require.NoError(t, w.HandleEvent(ctx, event(jobID, events.KindProgress, 4, 10)))
	// Replayed event is ignored.
	require.NoError(t, w.HandleEvent(ctx, event(jobID, events.KindProgress, 4, 10)))
	require.NoError(t, w.HandleEvent(ctx, event(jobID, events.KindCompleted, 10, 10)))

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Wait(waitCtx))
	assert.Contains(t, out.String(), "Generating")
	assert.Contains(t, out.String(), "completed: 10/10")
}

func TestJobWatcher_Failed(t *testing.T) {
	var out bytes.Buffer
	jobID := uuid.New()
	w := newJobWatcher(jobID, &out)

	failed := event(jobID, events.KindFailed, 3, 10)
	failed.Message = "The AI provider is temporarily unavailable."
	require.NoError(t, w.HandleEvent(context.Background(), failed))

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := w.Wait(waitCtx)
	require.ErrorIs(t, err, errJobFailed)
	assert.Contains(t, out.String(), "temporarily unavailable")
}

func TestJobWatcher_WaitHonorsContext(t *testing.T) {
	w := newJobWatcher(uuid.New(), &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)
}
