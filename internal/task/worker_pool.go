package task

import (
	"context"
	"log/slog"
	"sync"
)

// ProcessFunc handles one job pulled from the queue.
type ProcessFunc func(job *Job, workerID int)

// WorkerPool manages a pool of worker goroutines that process jobs
// from a task queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	queue       *TaskQueue
	workerCount int
	process     ProcessFunc
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(queue *TaskQueue, config WorkerPoolConfig, process ProcessFunc, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	return &WorkerPool{
		queue:       queue,
		workerCount: workerCount,
		process:     process,
		logger:      logger,
	}
}

// Start launches the workers. They run until ctx is cancelled or the queue
// is closed.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("worker pool started", "worker_count", p.workerCount)
}

// Wait blocks until every worker has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debug("starting worker", "worker_id", id)

	for {
		job, ok := p.queue.Next(ctx)
		if !ok {
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		}
		p.process(job, id)
	}
}
