// Package strategy selects and runs the execution path for a download. Each
// platform has two interchangeable paths: an in-process library client and
// an external tool invocation. Feature flags pick the path per platform;
// when the library path fails recoverably, the fallback policy may retry
// the same URL through the tool.
package strategy

import (
	"context"
	"time"

	"fetchd/internal/media"
	"fetchd/internal/platform"
	"fetchd/internal/procexec"
)

// Strategy downloads media for one platform.
type Strategy interface {
	// Platform identifies which platform this strategy serves.
	Platform() platform.Platform
	// SupportsURL reports whether the URL belongs to this strategy's platform.
	SupportsURL(rawURL string) bool
	// Download fetches all media for the URL. It always returns metadata;
	// failures are reported through the metadata's error fields rather
	// than a Go error so every outcome is normalized the same way.
	Download(ctx context.Context, rawURL string, options map[string]any) media.Metadata
}

// ProcessRunner runs an external tool; satisfied by procexec.Executor.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args []string, workdir string, timeout time.Duration) (procexec.Result, error)
}
