package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingRunner struct {
	mu      sync.Mutex
	active  int
	peak    int
	total   int32
	release chan struct{}
}

func (r *countingRunner) Run(ctx context.Context, jobID string) {
	r.mu.Lock()
	r.active++
	if r.active > r.peak {
		r.peak = r.active
	}
	r.mu.Unlock()

	if r.release != nil {
		<-r.release
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	atomic.AddInt32(&r.total, 1)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	pool := NewPool(3, runner, nil)

	for i := 0; i < 12; i++ {
		pool.Submit(context.Background(), fmt.Sprintf("job-%d", i))
	}
	// Let the first wave of workers claim their slots.
	time.Sleep(30 * time.Millisecond)
	close(runner.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := atomic.LoadInt32(&runner.total); got != 12 {
		t.Fatalf("expected all 12 jobs to run, got %d", got)
	}
	runner.mu.Lock()
	peak := runner.peak
	runner.mu.Unlock()
	if peak > 3 {
		t.Fatalf("expected at most 3 concurrent runs, saw %d", peak)
	}
}

func TestPoolSubmitDoesNotBlock(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	defer close(runner.release)
	pool := NewPool(1, runner, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			pool.Submit(context.Background(), fmt.Sprintf("job-%d", i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("submit blocked the caller")
	}
}

func TestPoolDropsAfterShutdown(t *testing.T) {
	runner := &countingRunner{}
	pool := NewPool(2, runner, nil)
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	pool.Submit(context.Background(), "late")
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&runner.total); got != 0 {
		t.Fatalf("expected late job to be dropped, got %d runs", got)
	}
}

func TestPoolHonoursDispatchCancellation(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	pool := NewPool(1, runner, nil)

	// Occupy the only slot.
	pool.Submit(context.Background(), "holder")
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Submit(ctx, "waiter")
	cancel()
	close(runner.release)

	sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer scancel()
	if err := pool.Shutdown(sctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// Only the holder ran; the waiter's dispatch was cancelled. The race
	// between cancel and a freed slot permits either, never more than two.
	if got := atomic.LoadInt32(&runner.total); got < 1 || got > 2 {
		t.Fatalf("unexpected run count %d", got)
	}
}
