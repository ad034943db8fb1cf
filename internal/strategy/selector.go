package strategy

import (
	"fmt"
	"log/slog"

	"fetchd/internal/config"
	"fetchd/internal/flags"
	"fetchd/internal/platform"
	"fetchd/internal/services"
)

// Selector routes URLs to the strategy serving their platform.
type Selector struct {
	strategies map[platform.Platform]Strategy
}

// NewSelector builds a selector over the given strategies.
func NewSelector(strategies ...Strategy) *Selector {
	byPlatform := make(map[platform.Platform]Strategy, len(strategies))
	for _, s := range strategies {
		byPlatform[s.Platform()] = s
	}
	return &Selector{strategies: byPlatform}
}

// NewDefaultSelector wires the four production strategies.
func NewDefaultSelector(cfg *config.Config, fl flags.FeatureFlags, proc ProcessRunner, logger *slog.Logger) *Selector {
	return NewSelector(
		NewTwitter(cfg, fl, proc, logger),
		NewReddit(cfg, fl, proc, logger),
		NewInstagram(cfg, fl, proc, logger),
		NewYouTube(cfg, fl, proc, logger),
	)
}

// ForURL returns the strategy for the URL's platform. Unsupported URLs are
// rejected before any queueing or download work happens.
func (s *Selector) ForURL(rawURL string) (Strategy, error) {
	detected, ok := platform.Detect(rawURL)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "strategy", "select",
			fmt.Sprintf("unsupported url: %s", rawURL), nil)
	}
	strat, ok := s.strategies[detected]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "strategy", "select",
			fmt.Sprintf("no strategy registered for platform %s", detected), nil)
	}
	return strat, nil
}

// ForPlatform returns the strategy registered for a platform.
func (s *Selector) ForPlatform(p platform.Platform) (Strategy, bool) {
	strat, ok := s.strategies[p]
	return strat, ok
}
