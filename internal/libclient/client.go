// Package libclient implements the in-process library execution path. Each
// client speaks to a platform directly from the daemon process instead of
// shelling out to an external tool.
//
// Clients never enforce their own deadlines; the caller bounds every fetch
// through the supplied context.
package libclient

import (
	"context"
	"time"

	"fetchd/internal/configmerge"
	"fetchd/internal/platform"
)

// RawItem is one downloaded file as reported by a client, before
// normalization into media metadata.
type RawItem struct {
	Path      string
	Title     string
	SourceURL string
	SizeBytes int64
	MimeType  string
	Duration  time.Duration
}

// Request describes one library-mode fetch.
type Request struct {
	URL      string
	Platform platform.Platform
	DestDir  string
	Settings configmerge.Settings
}

// Client is an in-process downloader for one or more platforms.
type Client interface {
	// Fetch downloads all media for the URL into req.DestDir. Extraction
	// failures wrap services.ErrExtraction; a cancelled context wraps
	// services.ErrCancelled.
	Fetch(ctx context.Context, req Request) ([]RawItem, error)
}
