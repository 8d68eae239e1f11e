package events

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingBus captures published events.
type recordingBus struct {
	mu        sync.Mutex
	events    []*LifecycleEvent
	PublishFn func(ctx context.Context, event *LifecycleEvent) error
}

func (b *recordingBus) Publish(ctx context.Context, event *LifecycleEvent) error {
	if b.PublishFn != nil {
		if err := b.PublishFn(ctx, event); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) all() []*LifecycleEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*LifecycleEvent(nil), b.events...)
}
