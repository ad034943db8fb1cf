// Package queue orchestrates downloads: items enter a FIFO queue, a bounded
// dispatcher runs them through their platform strategy, and terminal results
// are handed to finish hooks. Queue state lives in memory only; restarts
// start empty.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"fetchd/internal/config"
	"fetchd/internal/logging"
	"fetchd/internal/media"
	"fetchd/internal/services"
	"fetchd/internal/strategy"
	"fetchd/internal/workpool"
)

// FinishHook observes every item reaching a terminal state.
type FinishHook func(item Item)

// Manager owns the download queue. The worker pool is sized by
// worker_pool_size; the gate caps items in the running state at
// max_concurrency.
type Manager struct {
	cfg      *config.Config
	selector *strategy.Selector
	logger   *slog.Logger
	pool     *workpool.Pool
	gate     *semaphore.Weighted
	hooks    []FinishHook

	mu      sync.Mutex
	items   map[int64]*Item
	pending []int64
	cancels map[int64]context.CancelFunc
	nextID  int64

	wake    chan struct{}
	stopped chan struct{}
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithFinishHook registers a hook invoked after an item reaches a terminal
// state. Hooks run on the item's worker goroutine.
func WithFinishHook(hook FinishHook) ManagerOption {
	return func(m *Manager) {
		m.hooks = append(m.hooks, hook)
	}
}

// NewManager creates a queue manager. Start must be called before items run.
func NewManager(cfg *config.Config, selector *strategy.Selector, logger *slog.Logger, opts ...ManagerOption) *Manager {
	maxConcurrency := int64(cfg.Queue.MaxConcurrency)
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	m := &Manager{
		cfg:      cfg,
		selector: selector,
		logger:   logging.NewComponentLogger(logger, "queue-manager"),
		pool:     workpool.New(int64(cfg.Queue.WorkerPoolSize)),
		gate:     semaphore.NewWeighted(maxConcurrency),
		items:    make(map[int64]*Item),
		cancels:  make(map[int64]context.CancelFunc),
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the dispatcher. It returns immediately; the dispatcher runs
// until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go m.dispatch(ctx)
}

// Wait blocks until the dispatcher has exited and all running items have
// finished. Call after cancelling the Start context.
func (m *Manager) Wait() {
	<-m.stopped
	m.pool.Wait()
}

// Enqueue validates the URL, assigns the item an identifier, and appends it
// to the queue. Service order among pending items is submission order.
func (m *Manager) Enqueue(url string, options map[string]any) (Item, error) {
	strat, err := m.selector.ForURL(url)
	if err != nil {
		return Item{}, err
	}

	m.mu.Lock()
	m.nextID++
	item := &Item{
		ID:            m.nextID,
		CorrelationID: uuid.NewString(),
		Request: Request{
			URL:      url,
			Platform: strat.Platform(),
			Options:  copyOptions(options),
		},
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	m.items[item.ID] = item
	m.pending = append(m.pending, item.ID)
	snapshot := item.clone()
	m.mu.Unlock()

	m.logger.Info("item enqueued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldPlatform, item.Request.Platform.String()),
		logging.String("url", url),
	)
	m.poke()
	return snapshot, nil
}

// Cancel stops an item. Pending items are cancelled immediately without
// affecting the order of the remaining queue; running items have their
// context cancelled and reach the cancelled state when their worker returns.
func (m *Manager) Cancel(id int64) error {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "queue", "cancel",
			fmt.Sprintf("item %d not found", id), nil)
	}

	switch item.Status {
	case StatusPending:
		item.Status = StatusCancelled
		item.FinishedAt = time.Now().UTC()
		m.removePending(id)
		snapshot := item.clone()
		m.mu.Unlock()
		m.logger.Info("pending item cancelled", logging.Int64(logging.FieldItemID, id))
		m.notifyFinish(snapshot)
		return nil
	case StatusRunning:
		cancel := m.cancels[id]
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		m.logger.Info("running item cancel requested", logging.Int64(logging.FieldItemID, id))
		return nil
	default:
		m.mu.Unlock()
		return services.Wrap(services.ErrConfiguration, "queue", "cancel",
			fmt.Sprintf("item %d already %s", id, item.Status), nil)
	}
}

// Get returns a snapshot of one item.
func (m *Manager) Get(id int64) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Item{}, false
	}
	return item.clone(), true
}

// List returns snapshots of all items, oldest first, optionally filtered by
// status.
func (m *Manager) List(statuses ...Status) []Item {
	filter := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		filter[s] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		if len(filter) > 0 && !filter[item.Status] {
			continue
		}
		out = append(out, item.clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// ClearFinished drops all terminal items from memory and reports how many
// were removed.
func (m *Manager) ClearFinished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, item := range m.items {
		if item.Status.Terminal() {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

// Counts returns the number of items per status.
func (m *Manager) Counts() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[Status]int)
	for _, item := range m.items {
		counts[item.Status]++
	}
	return counts
}

func (m *Manager) dispatch(ctx context.Context) {
	defer close(m.stopped)
	for {
		id, ok := m.takePending()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
				continue
			}
		}

		// Acquire blocks while max_concurrency items are running, which
		// keeps service order strictly FIFO.
		if err := m.gate.Acquire(ctx, 1); err != nil {
			m.requeueFront(id)
			return
		}
		err := m.pool.Go(ctx, func(runCtx context.Context) {
			defer m.gate.Release(1)
			m.run(runCtx, id)
		})
		if err != nil {
			m.gate.Release(1)
			m.requeueFront(id)
			return
		}
	}
}

func (m *Manager) run(ctx context.Context, id int64) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok || item.Status != StatusPending {
		// Cancelled between dispatch and start.
		m.mu.Unlock()
		return
	}
	itemCtx, cancel := context.WithCancel(ctx)
	m.cancels[id] = cancel
	item.Status = StatusRunning
	item.StartedAt = time.Now().UTC()
	request := item.Request
	correlationID := item.CorrelationID
	m.mu.Unlock()
	defer cancel()

	itemCtx = services.WithItemID(itemCtx, id)
	itemCtx = services.WithPlatform(itemCtx, request.Platform.String())
	itemCtx = services.WithRequestID(itemCtx, correlationID)

	logger := logging.WithContext(itemCtx, m.logger)
	logger.Info("download started", logging.String("url", request.URL))

	strat, ok := m.selector.ForPlatform(request.Platform)
	var result media.Metadata
	if !ok {
		result = media.Failure(request.Platform, request.URL, "no strategy registered")
	} else {
		result = strat.Download(itemCtx, request.URL, request.Options)
	}

	cancelled := itemCtx.Err() != nil && ctx.Err() == nil

	m.mu.Lock()
	delete(m.cancels, id)
	item.Result = &result
	item.FinishedAt = time.Now().UTC()
	switch {
	case cancelled:
		item.Status = StatusCancelled
	case result.OK():
		item.Status = StatusCompleted
	default:
		item.Status = StatusFailed
	}
	snapshot := item.clone()
	m.mu.Unlock()

	logger.Info("download finished",
		logging.String("status", string(snapshot.Status)),
		logging.String(logging.FieldMethod, string(result.DownloadMethod)),
	)
	m.notifyFinish(snapshot)
}

func (m *Manager) takePending() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return 0, false
	}
	id := m.pending[0]
	m.pending = m.pending[1:]
	return id, true
}

func (m *Manager) requeueFront(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append([]int64{id}, m.pending...)
}

func (m *Manager) removePending(id int64) {
	for i, pendingID := range m.pending {
		if pendingID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

func (m *Manager) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) notifyFinish(item Item) {
	for _, hook := range m.hooks {
		hook(item)
	}
}
