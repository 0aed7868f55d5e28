package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Job represents a unit of work.
type Job[T any] interface {
	Process(ctx context.Context) (T, error)
}

// WorkerPool is a generic worker pool; idle workers pull the next queued job.
type WorkerPool[J Job[R], R any] struct {
	workers int
	logger  *log.Logger
}

// New creates a worker pool. Fewer than one worker is treated as one.
func New[J Job[R], R any](workers int, logger *log.Logger) *WorkerPool[J, R] {
	return &WorkerPool[J, R]{
		workers: max(1, workers),
		logger:  logger,
	}
}

// ProcessResult contains the result of processing a job.
type ProcessResult[J Job[R], R any] struct {
	Job    J
	Result R
	Error  error
}

// Process runs jobs and streams results in completion order. A zero timeout
// leaves jobs bounded only by ctx. The channel closes once every worker exits.
func (wp *WorkerPool[J, R]) Process(
	ctx context.Context,
	jobs []J,
	timeout time.Duration,
) <-chan ProcessResult[J, R] {
	jobQueue := make(chan J, len(jobs))
	results := make(chan ProcessResult[J, R], len(jobs))

	for _, job := range jobs {
		jobQueue <- job
	}
	close(jobQueue)

	var wg sync.WaitGroup
	for i := 0; i < min(wp.workers, max(1, len(jobs))); i++ {
		wg.Add(1)
		go wp.worker(ctx, i, jobQueue, results, timeout, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (wp *WorkerPool[J, R]) worker(
	ctx context.Context,
	id int,
	jobs <-chan J,
	results chan<- ProcessResult[J, R],
	timeout time.Duration,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	processed := 0
	startTime := time.Now()

	for job := range jobs {
		if ctx.Err() != nil {
			wp.logger.Debug("Worker stopping", "worker", id, "processed", processed)
			return
		}
		jobStart := time.Now()

		jobCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		result, err := job.Process(jobCtx)
		cancel()

		if err != nil {
			wp.logger.Debug("Job failed", "worker", id, "duration", time.Since(jobStart), "error", err)
		} else {
			wp.logger.Debug("Job completed", "worker", id, "duration", time.Since(jobStart))
			processed++
		}

		results <- ProcessResult[J, R]{Job: job, Result: result, Error: err}
	}

	if processed > 0 {
		total := time.Since(startTime)
		wp.logger.Debug("Worker finished", "worker", id, "jobs", processed, "total", total, "avg", total/time.Duration(processed))
	}
}
