package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"archivesync/pkg/models"
)

// Job is one transfer attempt executed on the pool. It always returns an
// outcome; errors are carried inside the outcome, not alongside it.
type Job func(ctx context.Context) models.TransferOutcome

// WorkerPool runs transfer jobs on a fixed set of workers. It backs the
// per-request strategy of the transfer engine.
type WorkerPool struct {
	workers     int
	jobs        chan Job
	results     chan models.TransferOutcome
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	activeCount atomic.Int32
	totalJobs   atomic.Int64
	failedJobs  atomic.Int64
}

// NewWorkerPool creates a pool with the given number of workers.
func NewWorkerPool(ctx context.Context, workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	poolCtx, cancel := context.WithCancel(ctx)

	wp := &WorkerPool{
		workers: workers,
		jobs:    make(chan Job, workers*2),
		results: make(chan models.TransferOutcome, workers*2),
		ctx:     poolCtx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}

	return wp
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}

			wp.activeCount.Add(1)
			wp.totalJobs.Add(1)

			outcome := job(wp.ctx)

			if outcome.Status == models.OutcomeFailed || outcome.Status == models.OutcomeError {
				wp.failedJobs.Add(1)
			}

			wp.activeCount.Add(-1)

			select {
			case wp.results <- outcome:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

// Submit queues a job. It returns false once the pool context is done.
func (wp *WorkerPool) Submit(job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// Results returns the outcome channel.
func (wp *WorkerPool) Results() <-chan models.TransferOutcome {
	return wp.results
}

// Stop drains queued jobs and stops the pool gracefully.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
	close(wp.results)
}

// Shutdown cancels all workers immediately.
func (wp *WorkerPool) Shutdown() {
	wp.cancel()
	wp.wg.Wait()
	close(wp.results)
}

// ActiveWorkers returns the number of workers currently running a job.
func (wp *WorkerPool) ActiveWorkers() int32 {
	return wp.activeCount.Load()
}

// WorkerPoolStats contains worker pool statistics
type WorkerPoolStats struct {
	TotalWorkers  int     `json:"total_workers"`
	ActiveWorkers int32   `json:"active_workers"`
	TotalJobs     int64   `json:"total_jobs"`
	FailedJobs    int64   `json:"failed_jobs"`
	SuccessRate   float64 `json:"success_rate"`
}

// Stats returns pool statistics
func (wp *WorkerPool) Stats() WorkerPoolStats {
	total := wp.totalJobs.Load()
	failed := wp.failedJobs.Load()

	successRate := 0.0
	if total > 0 {
		successRate = float64(total-failed) / float64(total) * 100
	}

	return WorkerPoolStats{
		TotalWorkers:  wp.workers,
		ActiveWorkers: wp.activeCount.Load(),
		TotalJobs:     total,
		FailedJobs:    failed,
		SuccessRate:   successRate,
	}
}
