package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"callrate/pkg/logger"
	"callrate/pkg/retry"
)

// Job is a single run of the pool's command
type Job struct {
	Index int
	Args  []string
}

// Result represents the outcome of a job
type Result struct {
	Job      Job
	Output   []byte
	Err      error
	Attempts int
	Duration time.Duration
}

// Executor runs one attempt of a job
type Executor interface {
	Run(ctx context.Context, job Job) ([]byte, error)
}

// Waiter blocks until the next call may go ahead. *ratelimit.Limiter
// satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Pool runs jobs on a fixed number of workers. Every attempt of every job
// waits on the same Waiter, so the pool as a whole never exceeds its rate.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	executor    Executor
	limiter     Waiter
	retry       *retry.Config
	logger      logger.Logger
}

// NewPool creates a pool. A nil retry config runs each job once.
func NewPool(
	ctx context.Context,
	numWorkers int,
	executor Executor,
	limiter Waiter,
	retryCfg *retry.Config,
	log logger.Logger,
) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1, Logger: log}
	}

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		executor:    executor,
		limiter:     limiter,
		retry:       retryCfg,
		logger:      log,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes the
// result channel. Results must be drained concurrently.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Debug("Worker pool stopped")
}

// Abort cancels running and queued jobs. Stop must still be called.
func (p *Pool) Abort() {
	p.cancel()
}

// Submit queues a job, blocking while the queue is full. It must not be
// called after Stop.
func (p *Pool) Submit(job Job) error {
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("worker pool is shutting down: %w", err)
	}

	select {
	case p.jobQueue <- job:
		p.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"run": job.Index,
		})
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	}
}

// Results returns the channel results are delivered on
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		result := p.processJob(job)
		logger.LogRun(p.logger.WithField("worker_id", id), job.Index, result.Attempts, result.Duration, result.Err)

		// results are always delivered so a drained pool accounts for every job
		p.resultQueue <- result
	}
}

func (p *Pool) processJob(job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := p.ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	output, err := retry.DoWithResult(p.ctx, func(ctx context.Context, attempt int) ([]byte, error) {
		result.Attempts = attempt
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return p.executor.Run(ctx, job)
	}, p.retry)

	result.Output = output
	result.Err = err
	result.Duration = time.Since(start)
	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (p *Pool) GetQueueSize() int {
	return len(p.jobQueue)
}
