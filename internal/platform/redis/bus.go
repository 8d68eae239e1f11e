package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-forge/internal/events"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	goredis "github.com/redis/go-redis/v9"
)

// Bus publishes lifecycle events on a Redis channel and forwards events
// received on it to a handler.
type Bus struct {
	rdb            goredis.UniversalClient
	channel        string
	publishTimeout time.Duration
	logger         *slog.Logger
}

var _ events.Bus = (*Bus)(nil)

// NewBus creates a Bus on channel. A zero publishTimeout leaves publishes
// bound only by the caller's context.
func NewBus(rdb goredis.UniversalClient, channel string, publishTimeout time.Duration, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		rdb:            rdb,
		channel:        channel,
		publishTimeout: publishTimeout,
		logger:         log.With("component", "redis_event_bus", "channel", channel),
	}
}

// Publish implements events.Bus.
func (b *Bus) Publish(ctx context.Context, event *events.LifecycleEvent) error {
	raw, err := event.Marshal()
	if err != nil {
		return err
	}
	if b.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.publishTimeout)
		defer cancel()
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe starts forwarding events from the channel to handler and
// returns once the subscription is confirmed. Forwarding stops when ctx is
// done. Undecodable payloads and handler errors are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context, handler events.EventHandler) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				ev, err := events.UnmarshalLifecycleEvent([]byte(m.Payload))
				if err != nil {
					b.logger.Warn("dropping undecodable event", "error", err)
					continue
				}
				if err := handler.HandleEvent(ctx, ev); err != nil {
					logger.FromContextOrDefault(ctx, b.logger).WarnContext(ctx, "event handler failed",
						"event_id", ev.EventID,
						"event_name", ev.Name,
						"error", err)
				}
			}
		}
	}()
	return nil
}
