// Package fetchpool provides the bounded worker pool that executes page and
// entity fetches concurrently. The fixed pool size is the backpressure
// mechanism: total work per collection is bounded by the caller's input, so
// there is no separate queue depth limit.
package fetchpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fundscraper/pkg/logger"
)

// Job is one unit of fetch work. Key labels the job for logs and results.
type Job struct {
	Key     string
	Execute func() error
}

// Result reports the outcome of one job.
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Pool manages a fixed set of fetch workers.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	closed      atomic.Bool
	logger      logger.Logger
}

// New creates a worker pool with the given concurrency.
func New(numWorkers int, log logger.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight jobs, then closes the
// result queue. Submitted work always runs to completion.
func (p *Pool) Stop() {
	p.closed.Store(true)
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
}

// Submit adds a job to the queue. It fails only when the pool is shutting
// down.
func (p *Pool) Submit(job Job) error {
	if p.closed.Load() {
		return fmt.Errorf("worker pool is shutting down")
	}
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel of job outcomes.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// Size returns the configured worker count.
func (p *Pool) Size() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		start := time.Now()
		err := job.Execute()
		result := Result{Job: job, Err: err, Duration: time.Since(start)}

		if err != nil {
			p.logger.DebugWithFields("job failed", map[string]interface{}{
				"worker_id": id,
				"key":       job.Key,
				"error":     err.Error(),
				"duration":  result.Duration,
			})
		}

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}
