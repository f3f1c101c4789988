// Package exec provides the compute substrate the tiled execution
// strategy delegates to: a bounded pool that applies a task once per
// tile. The pool is a caller-owned resource threaded explicitly through
// kernel runs instead of living in ambient global state.
package exec

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds the number of tile tasks in flight. The zero value is not
// usable; construct with NewPool and release with Close.
type Pool struct {
	workers int
	closed  bool
}

// NewPool returns a pool running at most workers tasks concurrently.
// workers <= 0 means one worker per CPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int { return p.workers }

// Apply runs task(0..n-1), at most Workers at a time, and returns the
// first error. Remaining tasks are abandoned once an error or context
// cancellation occurs.
func (p *Pool) Apply(ctx context.Context, n int, task func(i int) error) error {
	if p.closed {
		return fmt.Errorf("exec: pool is closed")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return task(i) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close releases the pool. Apply on a closed pool fails.
func (p *Pool) Close() { p.closed = true }
