package worker

import (
	"context"
	"log"
	"sync"
)

// Runner executes the pipeline for one job.
type Runner interface {
	Run(ctx context.Context, jobID string)
}

// Pool dispatches pipeline runs onto a bounded set of workers so the number
// of simultaneous outstanding gateway calls stays capped. Submission never
// blocks the caller; the goroutine waits for a slot.
type Pool struct {
	runner Runner
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *log.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool running at most size jobs concurrently.
func NewPool(size int, runner Runner, logger *log.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[POOL] ", log.LstdFlags)
	}
	return &Pool{
		runner: runner,
		sem:    make(chan struct{}, size),
		logger: logger,
	}
}

// Submit schedules the job for execution and returns immediately.
func (p *Pool) Submit(ctx context.Context, jobID string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Printf("[%s] pool closed, dropping job", jobID)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			p.logger.Printf("[%s] dispatch cancelled before a worker was free", jobID)
			return
		}
		p.runner.Run(ctx, jobID)
	}()
}

// Shutdown stops accepting jobs and waits for in-flight runs, honouring the
// context deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
