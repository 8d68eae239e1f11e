package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	"github.com/phrazzld/scry-forge/internal/store"
	"github.com/phrazzld/scry-forge/internal/task"
)

const taskColumns = `id, type, payload, status, priority, attempts, max_attempts, run_at,
	error_message, created_at, updated_at`

// TaskStore implements task.TaskStore on the tasks table.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ task.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:     db,
		logger: logger.With("component", "task_store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SaveTask persists a new job.
func (s *TaskStore) SaveTask(ctx context.Context, job *task.Job) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.RunAt.IsZero() {
		job.RunAt = now
	}
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.Type, string(job.Payload), job.Status, job.Priority, job.Attempts,
		job.MaxAttempts, job.RunAt, job.LastError, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to save task",
			"task_id", job.ID,
			"task_type", job.Type,
			"error", err)
		return store.NewStoreError("task", "create", "insert failed", MapError(err))
	}
	return nil
}

// UpdateTaskStatus updates the status of a job. Moving a job to processing
// counts an attempt. An unknown ID is logged and ignored.
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, jobID uuid.UUID, status task.TaskStatus, errorMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $2,
		    error_message = $3,
		    attempts = CASE WHEN $2 = 'processing' THEN attempts + 1 ELSE attempts END,
		    updated_at = $4
		WHERE id = $1`,
		jobID, status, errorMsg, s.now())
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx, "no task found to update status",
			"task_id", jobID,
			"status", status)
	}
	return nil
}

// ScheduleRetry returns a failed job to pending with a new run time.
func (s *TaskStore) ScheduleRetry(
	ctx context.Context,
	jobID uuid.UUID,
	attempts int,
	runAt time.Time,
	errorMsg string,
) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'pending', attempts = $2, run_at = $3, error_message = $4, updated_at = $5
		WHERE id = $1`,
		jobID, attempts, runAt, errorMsg, s.now())
	if err != nil {
		return fmt.Errorf("failed to schedule task retry: %w", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// GetPendingTasks retrieves all pending jobs, oldest first.
func (s *TaskStore) GetPendingTasks(ctx context.Context) ([]*task.Job, error) {
	return s.byStatus(ctx, task.TaskStatusPending, 0)
}

// GetProcessingTasks retrieves processing jobs. A non-zero olderThan keeps
// only jobs untouched for at least that long.
func (s *TaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*task.Job, error) {
	return s.byStatus(ctx, task.TaskStatusProcessing, olderThan)
}

func (s *TaskStore) byStatus(ctx context.Context, status task.TaskStatus, olderThan time.Duration) ([]*task.Job, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1`
	args := []any{status}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, s.now().Add(-olderThan))
	}
	query += ` ORDER BY priority DESC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*task.Job
	for rows.Next() {
		var j task.Job
		if err := rows.Scan(&j.ID, &j.Type, &j.Payload, &j.Status, &j.Priority, &j.Attempts,
			&j.MaxAttempts, &j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return jobs, nil
}
