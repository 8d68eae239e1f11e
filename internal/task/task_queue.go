package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue is a bounded in-memory queue of ready jobs with two lanes.
// Jobs with a positive priority are handed out before normal jobs.
type TaskQueue struct {
	mu     sync.RWMutex
	high   chan *Job
	normal chan *Job
	logger *slog.Logger
	closed bool
}

// NewTaskQueue creates a new task queue; each lane holds up to size jobs.
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size <= 0 {
		size = 1
	}
	return &TaskQueue{
		high:   make(chan *Job, size),
		normal: make(chan *Job, size),
		logger: logger,
	}
}

// Enqueue adds a job without blocking.
// Returns an error if the lane is full or the queue is closed.
func (q *TaskQueue) Enqueue(job *Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	lane := q.normal
	if job.Priority > 0 {
		lane = q.high
	}
	select {
	case lane <- job:
		q.logger.Debug("task enqueued",
			"task_id", job.ID,
			"task_type", job.Type,
			"priority", job.Priority,
			"queue_len", len(lane),
			"queue_cap", cap(lane))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(lane))
	}
}

// Next blocks until a job is available, the context is done or the queue
// is closed and drained.
func (q *TaskQueue) Next(ctx context.Context) (*Job, bool) {
	high, normal := q.high, q.normal

	select {
	case job, ok := <-high:
		if ok {
			return job, true
		}
		high = nil
	default:
	}

	for high != nil || normal != nil {
		select {
		case <-ctx.Done():
			return nil, false
		case job, ok := <-high:
			if ok {
				return job, true
			}
			high = nil
		case job, ok := <-normal:
			if ok {
				return job, true
			}
			normal = nil
		}
	}
	return nil, false
}

// Len returns the number of ready jobs.
func (q *TaskQueue) Len() int {
	return len(q.high) + len(q.normal)
}

// Close closes the task queue, preventing further submission.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.high)
		close(q.normal)
		q.logger.Info("task queue closed")
	}
}
