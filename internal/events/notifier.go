package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/platform/metrics"
)

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 2 * time.Second

// Notifier emits lifecycle events.
type Notifier struct {
	bus     Bus
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewNotifier creates a Notifier publishing to bus.
func NewNotifier(bus Bus, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		bus:     bus,
		timeout: timeout,
		logger:  logger.With("component", "lifecycle_notifier"),
		now:     time.Now,
	}
}

// Emit publishes ev as an event of the given kind. Current is clamped to
// [0, Target]. Publishing failures are logged and swallowed; the publish
// is detached from ctx cancellation but bounded by the notifier timeout.
func (n *Notifier) Emit(ctx context.Context, kind Kind, ev LifecycleEvent) {
	ev.Kind = kind
	ev.Name = EventName(kind)
	if ev.EventID == uuid.Nil {
		ev.EventID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = n.now().UTC()
	}
	ev.Current = clamp(ev.Current, ev.Target)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.bus.Publish(pubCtx, &ev); err != nil {
		metrics.RecordEvent(ev.Name, "error")
		n.logger.WarnContext(ctx, "failed to publish lifecycle event",
			"event", ev.Name,
			"job_id", ev.JobID,
			"artifact_id", ev.ArtifactID,
			"error", err)
		return
	}
	metrics.RecordEvent(ev.Name, "ok")
	n.logger.DebugContext(ctx, "lifecycle event published",
		"event", ev.Name,
		"job_id", ev.JobID,
		"current", ev.Current,
		"target", ev.Target)
}

func clamp(current, target int) int {
	if current < 0 {
		return 0
	}
	if target >= 0 && current > target {
		return target
	}
	return current
}
