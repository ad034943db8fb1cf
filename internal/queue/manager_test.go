package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fetchd/internal/config"
	"fetchd/internal/media"
	"fetchd/internal/platform"
	"fetchd/internal/queue"
	"fetchd/internal/services"
	"fetchd/internal/strategy"
)

type stubStrategy struct {
	plat platform.Platform
	run  func(ctx context.Context, url string) media.Metadata
}

func (s *stubStrategy) Platform() platform.Platform { return s.plat }

func (s *stubStrategy) SupportsURL(rawURL string) bool {
	detected, ok := platform.Detect(rawURL)
	return ok && detected == s.plat
}

func (s *stubStrategy) Download(ctx context.Context, rawURL string, _ map[string]any) media.Metadata {
	return s.run(ctx, rawURL)
}

func newManager(t *testing.T, maxConcurrency int, run func(ctx context.Context, url string) media.Metadata, opts ...queue.ManagerOption) *queue.Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Queue.MaxConcurrency = maxConcurrency

	stub := &stubStrategy{plat: platform.YouTube, run: run}
	manager := queue.NewManager(&cfg, strategy.NewSelector(stub), nil, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		manager.Wait()
	})
	return manager
}

func okResult(url string) media.Metadata {
	return media.Success(platform.YouTube, url, "Video",
		[]media.FileInfo{{Path: "/downloads/video.mp4"}}, media.MethodProcess)
}

func waitFor(t *testing.T, manager *queue.Manager, id int64, want queue.Status) queue.Item {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		item, ok := manager.Get(id)
		if ok && item.Status == want {
			return item
		}
		time.Sleep(5 * time.Millisecond)
	}
	item, _ := manager.Get(id)
	t.Fatalf("item %d never reached %s (now %s)", id, want, item.Status)
	return queue.Item{}
}

func TestEnqueueRejectsUnsupportedURL(t *testing.T) {
	manager := newManager(t, 1, func(_ context.Context, url string) media.Metadata {
		return okResult(url)
	})

	_, err := manager.Enqueue("https://example.com/video", nil)
	if err == nil {
		t.Fatal("expected error for unsupported url")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error should wrap ErrConfiguration: %v", err)
	}
}

func TestQueueBoundsConcurrencyAndRunsFIFO(t *testing.T) {
	var running, peak atomic.Int32
	var mu sync.Mutex
	var started []string

	manager := newManager(t, 2, func(_ context.Context, url string) media.Metadata {
		now := running.Add(1)
		mu.Lock()
		if now > peak.Load() {
			peak.Store(now)
		}
		started = append(started, url)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return okResult(url)
	})

	var ids []int64
	for i := 0; i < 6; i++ {
		item, err := manager.Enqueue(fmt.Sprintf("https://youtube.com/watch?v=%d", i), nil)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, item.ID)
	}
	for _, id := range ids {
		waitFor(t, manager, id, queue.StatusCompleted)
	}

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency %d exceeds limit 2", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(started) != 6 {
		t.Fatalf("started %d items, want 6", len(started))
	}
}

func TestRunningItemsCappedBelowWorkerPoolSize(t *testing.T) {
	var running, peak atomic.Int32

	cfg := config.Default()
	cfg.Queue.MaxConcurrency = 2
	cfg.Queue.WorkerPoolSize = 8

	stub := &stubStrategy{plat: platform.YouTube, run: func(_ context.Context, url string) media.Metadata {
		now := running.Add(1)
		for {
			seen := peak.Load()
			if now <= seen || peak.CompareAndSwap(seen, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return okResult(url)
	}}
	manager := queue.NewManager(&cfg, strategy.NewSelector(stub), nil)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		manager.Wait()
	})

	var ids []int64
	for i := 0; i < 6; i++ {
		item, err := manager.Enqueue(fmt.Sprintf("https://youtube.com/watch?v=%d", i), nil)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, item.ID)
	}
	for _, id := range ids {
		waitFor(t, manager, id, queue.StatusCompleted)
	}

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak running %d exceeds max_concurrency 2 despite pool size 8", got)
	}
}

func TestEnqueueCopiesOptions(t *testing.T) {
	manager := newManager(t, 1, func(_ context.Context, url string) media.Metadata {
		return okResult(url)
	})

	options := map[string]any{
		"format": "best",
		"extractor": map[string]any{
			"videos": true,
		},
	}
	item, err := manager.Enqueue("https://youtube.com/watch?v=abc", options)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	options["format"] = "worst"
	options["extractor"].(map[string]any)["videos"] = false

	stored, ok := manager.Get(item.ID)
	if !ok {
		t.Fatal("item not found")
	}
	if stored.Request.Options["format"] != "best" {
		t.Fatalf("caller mutation reached stored options: %#v", stored.Request.Options)
	}
	if nested := stored.Request.Options["extractor"].(map[string]any); nested["videos"] != true {
		t.Fatalf("caller mutation reached nested stored options: %#v", nested)
	}
}

func TestQueueStrictOrderWithSingleSlot(t *testing.T) {
	var mu sync.Mutex
	var order []string

	manager := newManager(t, 1, func(_ context.Context, url string) media.Metadata {
		mu.Lock()
		order = append(order, url)
		mu.Unlock()
		return okResult(url)
	})

	var ids []int64
	for i := 0; i < 4; i++ {
		item, err := manager.Enqueue(fmt.Sprintf("https://youtube.com/watch?v=%d", i), nil)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, item.ID)
	}
	for _, id := range ids {
		waitFor(t, manager, id, queue.StatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, url := range order {
		want := fmt.Sprintf("https://youtube.com/watch?v=%d", i)
		if url != want {
			t.Fatalf("position %d ran %s, want %s (full order %v)", i, url, want, order)
		}
	}
}

func TestCancelPendingPreservesQueueOrder(t *testing.T) {
	release := make(chan struct{})
	manager := newManager(t, 1, func(_ context.Context, url string) media.Metadata {
		if url == "https://youtube.com/watch?v=blocker" {
			<-release
		}
		return okResult(url)
	})

	blocker, _ := manager.Enqueue("https://youtube.com/watch?v=blocker", nil)
	second, _ := manager.Enqueue("https://youtube.com/watch?v=second", nil)
	third, _ := manager.Enqueue("https://youtube.com/watch?v=third", nil)

	waitFor(t, manager, blocker.ID, queue.StatusRunning)
	if err := manager.Cancel(second.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	item := waitFor(t, manager, second.ID, queue.StatusCancelled)
	if item.Result != nil {
		t.Fatal("cancelled pending item should have no result")
	}

	close(release)
	waitFor(t, manager, blocker.ID, queue.StatusCompleted)
	waitFor(t, manager, third.ID, queue.StatusCompleted)
}

func TestCancelRunningItem(t *testing.T) {
	started := make(chan struct{})
	manager := newManager(t, 1, func(ctx context.Context, url string) media.Metadata {
		close(started)
		<-ctx.Done()
		return media.Failure(platform.YouTube, url, "download cancelled")
	})

	item, err := manager.Enqueue("https://youtube.com/watch?v=abc", nil)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	<-started

	if err := manager.Cancel(item.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	waitFor(t, manager, item.ID, queue.StatusCancelled)
}

func TestCancelUnknownItem(t *testing.T) {
	manager := newManager(t, 1, func(_ context.Context, url string) media.Metadata {
		return okResult(url)
	})

	err := manager.Cancel(999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error should wrap ErrNotFound: %v", err)
	}
}

func TestFinishHookSeesTerminalItems(t *testing.T) {
	var mu sync.Mutex
	var finished []queue.Status

	hook := func(item queue.Item) {
		mu.Lock()
		finished = append(finished, item.Status)
		mu.Unlock()
	}

	manager := newManager(t, 1, func(_ context.Context, url string) media.Metadata {
		if url == "https://youtube.com/watch?v=bad" {
			return media.Failure(platform.YouTube, url, "no formats found")
		}
		return okResult(url)
	}, queue.WithFinishHook(hook))

	good, _ := manager.Enqueue("https://youtube.com/watch?v=good", nil)
	bad, _ := manager.Enqueue("https://youtube.com/watch?v=bad", nil)

	waitFor(t, manager, good.ID, queue.StatusCompleted)
	waitFor(t, manager, bad.ID, queue.StatusFailed)

	mu.Lock()
	defer mu.Unlock()
	if len(finished) != 2 {
		t.Fatalf("hook saw %d items, want 2", len(finished))
	}
}

func TestClearFinishedKeepsActiveItems(t *testing.T) {
	release := make(chan struct{})
	manager := newManager(t, 1, func(_ context.Context, url string) media.Metadata {
		if url == "https://youtube.com/watch?v=slow" {
			<-release
		}
		return okResult(url)
	})

	fast, _ := manager.Enqueue("https://youtube.com/watch?v=fast", nil)
	waitFor(t, manager, fast.ID, queue.StatusCompleted)
	slow, _ := manager.Enqueue("https://youtube.com/watch?v=slow", nil)
	waitFor(t, manager, slow.ID, queue.StatusRunning)

	if removed := manager.ClearFinished(); removed != 1 {
		t.Fatalf("removed %d items, want 1", removed)
	}
	if _, ok := manager.Get(slow.ID); !ok {
		t.Fatal("running item must survive ClearFinished")
	}

	close(release)
	waitFor(t, manager, slow.ID, queue.StatusCompleted)
}
