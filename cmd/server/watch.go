package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/config"
	"github.com/phrazzld/scry-forge/internal/events"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	"github.com/phrazzld/scry-forge/internal/platform/redis"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// errJobFailed is returned by watch when the job ends in failure.
var errJobFailed = errors.New("generation failed")

func newWatchCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow the progress of a generation job",
		Long: `watch subscribes to the lifecycle event channel and renders a progress
bar for one job until it completes or fails. Only events published after the
subscription starts are seen.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.SetupWithWriter(cfg.Server, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			rdb, err := redis.NewClient(ctx, cfg.Redis)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			defer func() { _ = rdb.Close() }()

			w := newJobWatcher(jobID, cmd.OutOrStdout())
			bus := redis.NewBus(rdb, cfg.Events.Channel, 0, log)
			if err := bus.Subscribe(ctx, w); err != nil {
				return err
			}
			return w.Wait(ctx)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "give up after this long (0 waits forever)")
	return cmd
}

// jobWatcher renders the progress of one job from lifecycle events.
type jobWatcher struct {
	jobID   uuid.UUID
	out     io.Writer
	tracker *events.ProgressTracker

	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	once sync.Once
	done chan events.Progress
}

func newJobWatcher(jobID uuid.UUID, out io.Writer) *jobWatcher {
	return &jobWatcher{
		jobID:   jobID,
		out:     out,
		tracker: events.NewProgressTracker(),
		done:    make(chan events.Progress, 1),
	}
}

// HandleEvent implements events.EventHandler.
func (w *jobWatcher) HandleEvent(_ context.Context, ev *events.LifecycleEvent) error {
	if ev.JobID != w.jobID {
		return nil
	}
	p, changed := w.tracker.Observe(ev)
	if !changed {
		return nil
	}

	w.render(p)
	if p.Done() {
		w.once.Do(func() { w.done <- p })
	}
	return nil
}

func (w *jobWatcher) render(p events.Progress) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bar == nil {
		if p.Target <= 0 {
			return
		}
		w.bar = progressbar.NewOptions(p.Target,
			progressbar.OptionSetWriter(w.out),
			progressbar.OptionSetDescription("Generating"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
		)
	}
	_ = w.bar.Set(p.Current)
}

// Wait blocks until the job finishes or ctx is done.
func (w *jobWatcher) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p := <-w.done:
		w.mu.Lock()
		if w.bar != nil {
			_ = w.bar.Exit()
		}
		w.mu.Unlock()

		if p.Kind == events.KindFailed {
			_, _ = fmt.Fprintf(w.out, "\nfailed: %s\n", p.Message)
			return fmt.Errorf("%w: %s", errJobFailed, p.Message)
		}
		_, _ = fmt.Fprintf(w.out, "\ncompleted: %d/%d items, artifact %s\n", p.Current, p.Target, p.ArtifactID)
		return nil
	}
}
