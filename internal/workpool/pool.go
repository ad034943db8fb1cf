// Package workpool provides a bounded worker pool. Slot acquisition is
// FIFO, so submission order is service order when callers submit from a
// single goroutine.
package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of tasks running at once.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New creates a pool allowing at most size concurrent tasks.
func New(size int64) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// Go blocks until a slot is free, then runs task in its own goroutine. The
// slot is released when task returns. If ctx is cancelled while waiting, the
// task never starts and the context error is returned.
func (p *Pool) Go(ctx context.Context, task func(context.Context)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		task(ctx)
	}()
	return nil
}

// Wait blocks until every started task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
