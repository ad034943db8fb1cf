// Package api exposes queue operations as a transport-neutral service used
// by both the daemon's HTTP endpoints and the command line client.
package api

import (
	"context"
	"log/slog"

	"fetchd/internal/config"
	"fetchd/internal/flags"
	"fetchd/internal/history"
	"fetchd/internal/libclient"
	"fetchd/internal/logging"
	"fetchd/internal/platform"
	"fetchd/internal/queue"
)

// EnqueueRequest submits one URL for download.
type EnqueueRequest struct {
	URL string `json:"url"`
	// Options are per-request extractor overrides, merged over the
	// file-level extractor configuration.
	Options map[string]any `json:"options,omitempty"`
	// ExpandPlaylists enqueues each playlist entry as its own item when
	// the URL names a playlist.
	ExpandPlaylists bool `json:"expand_playlists,omitempty"`
}

// EnqueueResponse reports the created items. Playlist expansion creates one
// item per video.
type EnqueueResponse struct {
	Items []queue.Item `json:"items"`
}

// PlatformMode describes the resolved execution path for one platform.
type PlatformMode struct {
	Platform   string `json:"platform"`
	UseLibrary bool   `json:"use_library"`
}

// StatusResponse summarizes daemon state.
type StatusResponse struct {
	Counts          map[queue.Status]int `json:"counts"`
	MaxConcurrency  int                  `json:"max_concurrency"`
	FallbackEnabled bool                 `json:"fallback_enabled"`
	Modes           []PlatformMode       `json:"modes"`
}

// Service implements the queue operations.
type Service struct {
	cfg      *config.Config
	flags    flags.FeatureFlags
	manager  *queue.Manager
	store    *history.Store
	expander *libclient.PlaylistExpander
	logger   *slog.Logger
}

// NewService wires the service. The history store may be nil when the ledger
// is disabled (some tests run without it).
func NewService(cfg *config.Config, fl flags.FeatureFlags, manager *queue.Manager, store *history.Store, expander *libclient.PlaylistExpander, logger *slog.Logger) *Service {
	if expander == nil {
		expander = libclient.NewPlaylistExpander()
	}
	return &Service{
		cfg:      cfg,
		flags:    fl,
		manager:  manager,
		store:    store,
		expander: expander,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Enqueue validates and queues the request. A playlist URL with expansion
// enabled becomes one item per entry, in playlist order.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResponse, error) {
	if req.ExpandPlaylists && libclient.IsPlaylistURL(req.URL) {
		entries, err := s.expander.Expand(ctx, req.URL)
		if err != nil {
			return EnqueueResponse{}, err
		}
		items := make([]queue.Item, 0, len(entries))
		for _, entry := range entries {
			item, err := s.manager.Enqueue(entry.URL, req.Options)
			if err != nil {
				return EnqueueResponse{}, err
			}
			items = append(items, item)
		}
		s.logger.Info("playlist expanded",
			logging.String("url", req.URL),
			logging.Int("items", len(items)),
		)
		return EnqueueResponse{Items: items}, nil
	}

	item, err := s.manager.Enqueue(req.URL, req.Options)
	if err != nil {
		return EnqueueResponse{}, err
	}
	return EnqueueResponse{Items: []queue.Item{item}}, nil
}

// Queue returns items, optionally filtered by status.
func (s *Service) Queue(statuses ...queue.Status) []queue.Item {
	return s.manager.List(statuses...)
}

// Item returns one item by identifier.
func (s *Service) Item(id int64) (queue.Item, bool) {
	return s.manager.Get(id)
}

// Cancel stops an item.
func (s *Service) Cancel(id int64) error {
	return s.manager.Cancel(id)
}

// ClearFinished drops terminal items and reports how many were removed.
func (s *Service) ClearFinished() int {
	return s.manager.ClearFinished()
}

// Status summarizes queue counts and the resolved execution modes.
func (s *Service) Status() StatusResponse {
	modes := make([]PlatformMode, 0, len(platform.All()))
	for _, p := range platform.All() {
		modes = append(modes, PlatformMode{
			Platform:   p.String(),
			UseLibrary: s.flags.UseLibrary(p),
		})
	}
	return StatusResponse{
		Counts:          s.manager.Counts(),
		MaxConcurrency:  s.cfg.Queue.MaxConcurrency,
		FallbackEnabled: s.flags.FallbackEnabled(),
		Modes:           modes,
	}
}

// History returns finished downloads from the ledger, newest first. An empty
// platform name returns all platforms.
func (s *Service) History(ctx context.Context, platformName string, limit int) ([]history.Entry, error) {
	if s.store == nil {
		return nil, nil
	}
	if platformName == "" {
		return s.store.Recent(ctx, limit)
	}
	return s.store.ByPlatform(ctx, platformName, limit)
}
