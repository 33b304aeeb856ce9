package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler starts background work detached from the request that asked for it.
type Scheduler interface {
	Go(fn func(ctx context.Context))
}

// JobRunner runs generation jobs in goroutines, each with its own deadline.
// Shutdown stops accepting work and waits for running jobs to drain.
type JobRunner struct {
	base    context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewJobRunner creates a runner. A non-positive timeout means jobs only stop on Shutdown.
func NewJobRunner(timeout time.Duration) *JobRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobRunner{base: ctx, cancel: cancel, timeout: timeout}
}

// Go runs fn in a new goroutine. After Shutdown it is a no-op; the job stays
// pending and is reported failed once it goes stale.
func (r *JobRunner) Go(fn func(ctx context.Context)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		log.Println("WARN: Job runner is shutting down, dropping scheduled job")
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("ERROR: Background job panicked: %v", rec)
			}
		}()

		ctx := r.base
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(r.base, r.timeout)
			defer cancel()
		}
		fn(ctx)
	}()
}

// Shutdown waits for running jobs. If ctx expires first the jobs are cancelled,
// which makes them record a failure, and ctx.Err() is returned.
func (r *JobRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		log.Println("WARN: Generation jobs still running at shutdown, cancelling them")
		r.cancel()
		return ctx.Err()
	}
}
