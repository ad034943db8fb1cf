// Package daemon assembles the download engine into a single long-running
// process: queue manager, strategies, history ledger, notifications, and the
// HTTP API, with flock-based locking to prevent multiple instances.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fetchd/internal/api"
	"fetchd/internal/config"
	"fetchd/internal/flags"
	"fetchd/internal/history"
	"fetchd/internal/libclient"
	"fetchd/internal/logging"
	"fetchd/internal/notify"
	"fetchd/internal/procexec"
	"fetchd/internal/queue"
	"fetchd/internal/strategy"
)

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	flags     flags.FeatureFlags
	manager   *queue.Manager
	store     *history.Store
	publisher notify.Publisher
	service   *api.Service
	server    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with all dependencies wired.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	fl := flags.Resolve(cfg.Modes, nil)

	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	publisher, err := notify.FromConfig(cfg.Notifications, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("configure notifications: %w", err)
	}

	executor := procexec.New(logger, cfg.Queue.OutputCaptureLimitKB)
	selector := strategy.NewDefaultSelector(cfg, fl, executor, logger)

	daemonLogger := logging.NewComponentLogger(logger, "daemon")
	manager := queue.NewManager(cfg, selector, logger,
		queue.WithFinishHook(func(item queue.Item) {
			if err := store.Record(context.Background(), item); err != nil {
				daemonLogger.Warn("history record failed",
					logging.Int64(logging.FieldItemID, item.ID),
					logging.Error(err),
				)
			}
		}),
		queue.WithFinishHook(func(item queue.Item) {
			if err := publisher.Publish(context.Background(), notify.EventFromItem(item)); err != nil {
				daemonLogger.Warn("notification publish failed",
					logging.Int64(logging.FieldItemID, item.ID),
					logging.Error(err),
				)
			}
		}),
	)

	service := api.NewService(cfg, fl, manager, store, libclient.NewPlaylistExpander(), logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "fetchd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    daemonLogger,
		flags:     fl,
		manager:   manager,
		store:     store,
		publisher: publisher,
		service:   service,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, service, logger)
	return d, nil
}

// Service exposes the queue operations for in-process callers.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// Config returns the configuration the daemon was built with.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}

// Start acquires the daemon lock and launches the queue and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fetchd instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.manager.Start(runCtx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		d.manager.Wait()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("fetchd daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.cfg.Paths.APIBind),
	)
	return nil
}

// Stop drains running downloads and releases all resources.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Wait()
	d.server.stop()

	if err := d.store.Close(); err != nil {
		d.logger.Warn("close history store", logging.Error(err))
	}
	if err := d.publisher.Close(); err != nil {
		d.logger.Warn("close notification publisher", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}

	d.running.Store(false)
	d.logger.Info("fetchd daemon stopped")
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, empty until Start succeeds.
func (d *Daemon) APIAddr() string {
	return d.server.addr()
}
