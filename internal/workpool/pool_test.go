package workpool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fetchd/internal/workpool"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	const limit = 2
	pool := workpool.New(limit)

	var running, peak atomic.Int32
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		err := pool.Go(context.Background(), func(context.Context) {
			now := running.Add(1)
			mu.Lock()
			if now > peak.Load() {
				peak.Store(now)
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
		if err != nil {
			t.Fatalf("Go failed: %v", err)
		}
	}
	pool.Wait()

	if got := peak.Load(); got > limit {
		t.Fatalf("peak concurrency %d exceeds limit %d", got, limit)
	}
}

func TestPoolGoHonorsCancellation(t *testing.T) {
	pool := workpool.New(1)

	release := make(chan struct{})
	err := pool.Go(context.Background(), func(context.Context) {
		<-release
	})
	if err != nil {
		t.Fatalf("Go failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Go(ctx, func(context.Context) {}); err == nil {
		t.Fatal("expected context error while waiting for slot")
	}

	close(release)
	pool.Wait()
}
