package media

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fetchd/internal/platform"
)

// DownloadMethod records which execution path produced a result.
type DownloadMethod string

const (
	MethodLibrary DownloadMethod = "library"
	MethodProcess DownloadMethod = "process"
)

// FileInfo describes one downloaded or resolved media file.
type FileInfo struct {
	Path      string `json:"path"`
	Title     string `json:"title,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Duration  int    `json:"duration_seconds,omitempty"`
}

// Metadata is the one normalized result shape returned to callers regardless
// of execution path. Exactly one of Files (non-empty) or RawError is set.
type Metadata struct {
	Platform       platform.Platform `json:"platform"`
	SourceURL      string            `json:"source_url"`
	Title          string            `json:"title,omitempty"`
	Files          []FileInfo        `json:"files,omitempty"`
	DownloadMethod DownloadMethod    `json:"download_method,omitempty"`
	RawError       string            `json:"raw_error,omitempty"`
	FetchedAt      time.Time         `json:"fetched_at"`
}

// Success constructs a successful result. An empty file list is coerced to a
// failure so the one-of invariant always holds.
func Success(p platform.Platform, sourceURL, title string, files []FileInfo, method DownloadMethod) Metadata {
	if len(files) == 0 {
		return Failure(p, sourceURL, "no files produced")
	}
	return Metadata{
		Platform:       p,
		SourceURL:      sourceURL,
		Title:          title,
		Files:          files,
		DownloadMethod: method,
		FetchedAt:      time.Now().UTC(),
	}
}

// Failure constructs a failed result carrying a human-readable cause.
// DownloadMethod is left unset: no path completed.
func Failure(p platform.Platform, sourceURL, cause string) Metadata {
	cause = strings.TrimSpace(cause)
	if cause == "" {
		cause = "download failed"
	}
	return Metadata{
		Platform:  p,
		SourceURL: sourceURL,
		RawError:  cause,
		FetchedAt: time.Now().UTC(),
	}
}

// OK reports whether the result carries files rather than an error.
func (m Metadata) OK() bool {
	return m.RawError == "" && len(m.Files) > 0
}

// Valid verifies the one-of invariant: exactly one of files / raw error.
func (m Metadata) Valid() bool {
	return (len(m.Files) > 0) != (m.RawError != "")
}

var titleCaser = cases.Title(language.English)

// FallbackTitle derives a display title when the extractor provided none,
// e.g. "twitter media" -> "Twitter Media".
func FallbackTitle(p platform.Platform) string {
	return titleCaser.String(string(p) + " media")
}
