package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Job is a persisted unit of background work.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     []byte
	Status      TaskStatus
	Priority    int
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Type, err))
	}
	return nil
}

// Handler executes jobs of one type.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// FailureHandler is implemented by handlers that need to react once a job
// has failed for good, either with a permanent error or after its last
// attempt.
type FailureHandler interface {
	OnFailure(ctx context.Context, job *Job, err error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, job *Job) error { return f(ctx, job) }

// EnqueueOptions tunes a single enqueue.
type EnqueueOptions struct {
	// Priority above zero places the job ahead of normal jobs.
	Priority int
	// Delay postpones the first attempt.
	Delay time.Duration
	// MaxAttempts overrides the runner's retry limit when positive.
	MaxAttempts int
}

// TaskStore defines the interface for persisting jobs
type TaskStore interface {
	// SaveTask persists a new job.
	SaveTask(ctx context.Context, job *Job) error

	// UpdateTaskStatus updates the status of a job.
	UpdateTaskStatus(ctx context.Context, jobID uuid.UUID, status TaskStatus, errorMsg string) error

	// ScheduleRetry records a failed attempt and returns the job to pending
	// with a new run time.
	ScheduleRetry(ctx context.Context, jobID uuid.UUID, attempts int, runAt time.Time, errorMsg string) error

	// GetPendingTasks retrieves all jobs with "pending" status.
	GetPendingTasks(ctx context.Context) ([]*Job, error)

	// GetProcessingTasks retrieves jobs with "processing" status.
	// If olderThan is non-zero, only returns jobs that have been in this state
	// longer than the specified duration.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*Job, error)
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the runner fails the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
