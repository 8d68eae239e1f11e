package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the lifecycle stage an event reports.
type Kind string

// Lifecycle kinds
const (
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
)

// Terminal reports whether no further events follow for the job.
func (k Kind) Terminal() bool {
	return k == KindCompleted || k == KindFailed
}

// EventName returns the bus name for kind, e.g. "generation.progress".
func EventName(k Kind) string {
	return "generation." + string(k)
}

// ParseEventName is the inverse of EventName.
func ParseEventName(name string) (Kind, error) {
	for _, k := range []Kind{KindStarted, KindProgress, KindCompleted, KindFailed} {
		if EventName(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event name %q", name)
}

// LifecycleEvent reports the state of a generation job.
type LifecycleEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	Name         string    `json:"name"`
	Kind         Kind      `json:"kind"`
	JobID        uuid.UUID `json:"job_id"`
	Fingerprint  string    `json:"fingerprint"`
	ArtifactID   uuid.UUID `json:"artifact_id"`
	ArtifactKind string    `json:"artifact_kind"`
	Current      int       `json:"current"`
	Target       int       `json:"target"`
	ChunkIndex   int       `json:"chunk_index"`
	Message      string    `json:"message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Marshal encodes the event for transport.
func (e *LifecycleEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalLifecycleEvent decodes an event received from a transport.
func UnmarshalLifecycleEvent(data []byte) (*LifecycleEvent, error) {
	var e LifecycleEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode lifecycle event: %w", err)
	}
	if e.Kind == "" {
		k, err := ParseEventName(e.Name)
		if err != nil {
			return nil, err
		}
		e.Kind = k
	}
	return &e, nil
}

// Bus delivers lifecycle events to subscribers.
type Bus interface {
	Publish(ctx context.Context, event *LifecycleEvent) error
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *LifecycleEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *LifecycleEvent) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *LifecycleEvent) error {
	return f(ctx, event)
}

// MultiBus publishes to every bus in order and returns the first error.
type MultiBus []Bus

// Publish implements Bus.
func (m MultiBus) Publish(ctx context.Context, event *LifecycleEvent) error {
	var firstErr error
	for _, b := range m {
		if err := b.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
