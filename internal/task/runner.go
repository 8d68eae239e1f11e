package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	"github.com/phrazzld/scry-forge/internal/platform/metrics"
)

// ErrNoHandler is recorded for jobs whose type has no registered handler.
var ErrNoHandler = errors.New("no handler registered for task type")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size of each in-memory queue lane
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// DelayedPollInterval defines how often delayed jobs are checked for
	// readiness. If zero, defaults to 1 second
	DelayedPollInterval time.Duration

	// Retry is applied to jobs that do not set their own MaxAttempts
	Retry RetryPolicy
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		DelayedPollInterval:    time.Second,
		Retry:                  DefaultRetryPolicy(),
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	delayed    *delayQueue
	pool       *WorkerPool
	handlersMu sync.RWMutex
	handlers   map[string]Handler
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.DelayedPollInterval == 0 {
		config.DelayedPollInterval = time.Second
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())

	r := &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		delayed:    &delayQueue{},
		handlers:   make(map[string]Handler),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
	r.pool = NewWorkerPool(r.queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, r.processTask, logger)
	return r
}

// Register installs the handler for a task type.
func (r *TaskRunner) Register(taskType string, h Handler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers[taskType] = h
}

func (r *TaskRunner) handler(taskType string) (Handler, bool) {
	r.handlersMu.RLock()
	defer r.handlersMu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// Enqueue persists a new job and schedules it for processing.
func (r *TaskRunner) Enqueue(ctx context.Context, taskType string, payload []byte, opts EnqueueOptions) (uuid.UUID, error) {
	if r.ctx.Err() != nil {
		return uuid.Nil, ErrQueueClosed
	}

	now := r.now().UTC()
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.config.Retry.MaxAttempts
	}
	job := &Job{
		ID:          uuid.New(),
		Type:        taskType,
		Payload:     payload,
		Status:      TaskStatusPending,
		Priority:    opts.Priority,
		MaxAttempts: maxAttempts,
		RunAt:       now.Add(opts.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.SaveTask(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save task: %w", err)
	}

	r.dispatch(job)
	return job.ID, nil
}

// dispatch hands a pending job to the ready queue, or to the delay queue
// when it is not due yet or the ready lane is full.
func (r *TaskRunner) dispatch(job *Job) {
	if job.RunAt.After(r.now()) {
		r.delayed.push(job)
		r.reportDepth()
		return
	}
	if err := r.queue.Enqueue(job); err != nil {
		if errors.Is(err, ErrQueueClosed) {
			r.logger.Warn("task queue closed, job left pending for recovery",
				"task_id", job.ID,
				"task_type", job.Type)
			return
		}
		r.logger.Warn("task queue full, deferring job",
			"task_id", job.ID,
			"task_type", job.Type)
		job.RunAt = r.now().Add(r.config.DelayedPollInterval)
		r.delayed.push(job)
	}
	r.reportDepth()
}

func (r *TaskRunner) reportDepth() {
	metrics.SetQueueDepth(r.queue.Len() + r.delayed.len())
}

// Start recovers unfinished jobs and begins processing.
func (r *TaskRunner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start(r.ctx)

	r.wg.Add(2)
	go r.delayedScheduler()
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner. In-flight jobs finish; queued
// jobs stay pending in the store and are recovered on the next start.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.pool.Wait()
	r.wg.Wait()
	r.queue.Close()
}

// Recover loads any unfinished jobs from the store.
func (r *TaskRunner) Recover(ctx context.Context) error {
	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Jobs in "processing" state were interrupted by a crash.
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, job := range pendingTasks {
		r.dispatch(job)
	}

	for _, job := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, job.ID, TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", job.ID,
				"task_type", job.Type,
				"error", err)
			continue
		}
		job.Status = TaskStatusPending
		r.dispatch(job)
	}

	return nil
}

// processTask handles execution of a single job
func (r *TaskRunner) processTask(job *Job, workerID int) {
	jobLogger := r.logger.With(
		"task_id", job.ID,
		"task_type", job.Type,
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(context.Background(), jobLogger)

	h, ok := r.handler(job.Type)
	if !ok {
		jobLogger.Error("no handler for task type")
		r.fail(ctx, job, nil, ErrNoHandler)
		return
	}

	if err := r.store.UpdateTaskStatus(ctx, job.ID, TaskStatusProcessing, ""); err != nil {
		jobLogger.Error("failed to update task status to processing", "error", err)
		return
	}
	job.Status = TaskStatusProcessing
	job.Attempts++

	jobLogger.Info("processing task", "attempt", job.Attempts, "max_attempts", job.MaxAttempts)

	err := r.execute(ctx, h, job)
	if err == nil {
		jobLogger.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(ctx, job.ID, TaskStatusCompleted, ""); updateErr != nil {
			jobLogger.Error("failed to update task status to completed", "error", updateErr)
		}
		metrics.RecordTask(job.Type, "completed")
		return
	}

	if IsPermanent(err) || job.Attempts >= job.MaxAttempts {
		jobLogger.Error("task failed",
			"attempt", job.Attempts,
			"permanent", IsPermanent(err),
			"error", err)
		r.fail(ctx, job, h, err)
		return
	}

	delay := r.config.Retry.Delay(job.Attempts)
	job.RunAt = r.now().Add(delay)
	job.Status = TaskStatusPending
	job.LastError = err.Error()
	jobLogger.Warn("task failed, retrying",
		"attempt", job.Attempts,
		"retry_in", delay,
		"error", err)
	if updateErr := r.store.ScheduleRetry(ctx, job.ID, job.Attempts, job.RunAt, job.LastError); updateErr != nil {
		jobLogger.Error("failed to schedule task retry", "error", updateErr)
	}
	metrics.RecordTask(job.Type, "retried")
	r.delayed.push(job)
	r.reportDepth()
}

// execute runs the handler, converting a panic into a permanent error.
func (r *TaskRunner) execute(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = Permanent(fmt.Errorf("task handler panicked: %v", p))
		}
	}()
	return h.Handle(ctx, job)
}

func (r *TaskRunner) fail(ctx context.Context, job *Job, h Handler, err error) {
	job.Status = TaskStatusFailed
	job.LastError = err.Error()
	if updateErr := r.store.UpdateTaskStatus(ctx, job.ID, TaskStatusFailed, err.Error()); updateErr != nil {
		r.logger.Error("failed to update task status to failed",
			"task_id", job.ID,
			"error", updateErr)
	}
	metrics.RecordTask(job.Type, "failed")

	if fh, ok := h.(FailureHandler); ok {
		var pe *permanentError
		if errors.As(err, &pe) {
			err = pe.err
		}
		fh.OnFailure(ctx, job, err)
	}
}

// delayedScheduler moves due jobs from the delay queue to the ready queue.
func (r *TaskRunner) delayedScheduler() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.DelayedPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			for _, job := range r.delayed.due(r.now()) {
				r.dispatch(job)
			}
		}
	}
}

// stuckTaskMonitor periodically checks for tasks that have been in "processing"
// state for too long and resets them
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}

			if len(stuckTasks) > 0 {
				r.logger.Info("found stuck tasks", "count", len(stuckTasks))
			}
			for _, job := range stuckTasks {
				if err := r.store.UpdateTaskStatus(ctx, job.ID, TaskStatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck task status",
						"task_id", job.ID,
						"task_type", job.Type,
						"error", err)
					continue
				}
				job.Status = TaskStatusPending
				r.dispatch(job)
				r.logger.Info("requeued stuck task",
					"task_id", job.ID,
					"task_type", job.Type)
			}
		}
	}
}
