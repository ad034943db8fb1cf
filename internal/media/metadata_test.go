package media_test

import (
	"testing"

	"fetchd/internal/media"
	"fetchd/internal/platform"
)

func TestSuccessHoldsInvariant(t *testing.T) {
	result := media.Success(platform.YouTube, "https://youtu.be/abc", "Clip", []media.FileInfo{{Path: "/tmp/clip.mp4"}}, media.MethodLibrary)
	if !result.OK() {
		t.Fatal("expected success result")
	}
	if !result.Valid() {
		t.Fatal("invariant violated: files and raw_error both set or both empty")
	}
	if result.DownloadMethod != media.MethodLibrary {
		t.Fatalf("unexpected method %q", result.DownloadMethod)
	}
}

func TestSuccessWithoutFilesBecomesFailure(t *testing.T) {
	result := media.Success(platform.Reddit, "https://redd.it/abc", "", nil, media.MethodProcess)
	if result.OK() {
		t.Fatal("expected coerced failure")
	}
	if !result.Valid() {
		t.Fatal("invariant violated on coerced failure")
	}
	if result.DownloadMethod != "" {
		t.Fatalf("failure should not record a download method, got %q", result.DownloadMethod)
	}
}

func TestFailureDefaultsCause(t *testing.T) {
	result := media.Failure(platform.Twitter, "https://x.com/a/status/1", "  ")
	if result.RawError == "" {
		t.Fatal("expected a non-empty raw error")
	}
	if !result.Valid() {
		t.Fatal("invariant violated on failure")
	}
}

func TestFallbackTitle(t *testing.T) {
	if got := media.FallbackTitle(platform.Instagram); got != "Instagram Media" {
		t.Fatalf("unexpected fallback title %q", got)
	}
}
