package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface in memory for testing.
// The Fn fields replace the default behavior when set.
type MockTaskStore struct {
	mutex           sync.RWMutex
	tasks           map[uuid.UUID]*Job
	taskStatusTimes map[uuid.UUID]time.Time
	SaveFn          func(ctx context.Context, job *Job) error
	UpdateStatusFn  func(ctx context.Context, jobID uuid.UUID, status TaskStatus, errorMsg string) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks:           make(map[uuid.UUID]*Job),
		taskStatusTimes: make(map[uuid.UUID]time.Time),
	}
}

// SaveTask persists a copy of the job.
func (s *MockTaskStore) SaveTask(ctx context.Context, job *Job) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, job)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *job
	s.tasks[job.ID] = &cp
	s.taskStatusTimes[job.ID] = time.Now()
	return nil
}

// UpdateTaskStatus updates the status of a stored job. Unknown IDs are ignored.
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	jobID uuid.UUID,
	status TaskStatus,
	errorMsg string,
) error {
	if s.UpdateStatusFn != nil {
		return s.UpdateStatusFn(ctx, jobID, status, errorMsg)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	job, ok := s.tasks[jobID]
	if !ok {
		return nil
	}
	job.Status = status
	job.LastError = errorMsg
	s.taskStatusTimes[jobID] = time.Now()
	return nil
}

// ScheduleRetry records a failed attempt.
func (s *MockTaskStore) ScheduleRetry(
	ctx context.Context,
	jobID uuid.UUID,
	attempts int,
	runAt time.Time,
	errorMsg string,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	job, ok := s.tasks[jobID]
	if !ok {
		return nil
	}
	job.Status = TaskStatusPending
	job.Attempts = attempts
	job.RunAt = runAt
	job.LastError = errorMsg
	s.taskStatusTimes[jobID] = time.Now()
	return nil
}

// GetPendingTasks retrieves copies of all pending jobs.
func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]*Job, error) {
	return s.byStatus(TaskStatusPending, 0), nil
}

// GetProcessingTasks retrieves copies of processing jobs older than olderThan.
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*Job, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

func (s *MockTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []*Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := time.Now()
	var out []*Job
	for id, job := range s.tasks {
		if job.Status != status {
			continue
		}
		if olderThan > 0 && now.Sub(s.taskStatusTimes[id]) <= olderThan {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out
}

// Get returns a copy of the stored job.
func (s *MockTaskStore) Get(id uuid.UUID) (*Job, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	job, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Put stores a job as is, for seeding recovery scenarios.
func (s *MockTaskStore) Put(job *Job, statusAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *job
	s.tasks[job.ID] = &cp
	s.taskStatusTimes[job.ID] = time.Now().Add(-statusAge)
}
