package libclient

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"fetchd/internal/configmerge"
	"fetchd/internal/platform"
	"fetchd/internal/services"
)

func TestYtdlpFetchMapsExtractedInfo(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(file, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	client := NewYtdlpClient(nil, WithYtdlpRunner(func(ctx context.Context, req Request, template string) ([]extracted, error) {
		if filepath.Dir(template) != dir {
			t.Fatalf("output template %q not under dest dir", template)
		}
		return []extracted{{Filename: file, Title: "A Clip", Duration: 95 * time.Second}}, nil
	}))

	items, err := client.Fetch(context.Background(), Request{
		URL:      "https://youtube.com/watch?v=abc",
		Platform: platform.YouTube,
		DestDir:  dir,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Title != "A Clip" || items[0].Path != file {
		t.Fatalf("item mapped wrong: %#v", items[0])
	}
	if items[0].SizeBytes == 0 {
		t.Fatal("size not stat'ed")
	}
	if items[0].MimeType != "video/mp4" {
		t.Fatalf("mime type = %q, want video/mp4", items[0].MimeType)
	}
	if items[0].Duration != 95*time.Second {
		t.Fatalf("duration = %s, want 95s", items[0].Duration)
	}
}

func TestYtdlpFetchPassesSettingsToRunner(t *testing.T) {
	settings := configmerge.Settings{
		UserAgent: "fetchd/1.0",
		Retries:   5,
		Options:   map[string]any{"format": "best"},
	}

	var seen configmerge.Settings
	client := NewYtdlpClient(nil, WithYtdlpRunner(func(ctx context.Context, req Request, template string) ([]extracted, error) {
		seen = req.Settings
		return []extracted{{Filename: filepath.Join(t.TempDir(), "v.mp4")}}, nil
	}))

	_, err := client.Fetch(context.Background(), Request{
		URL:      "https://youtube.com/watch?v=abc",
		Platform: platform.YouTube,
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if seen.UserAgent != "fetchd/1.0" || seen.Retries != 5 {
		t.Fatalf("settings not passed through: %#v", seen)
	}
	if seen.Options["format"] != "best" {
		t.Fatalf("merged options not passed through: %#v", seen.Options)
	}
}

func TestApplyYtdlpOptions(t *testing.T) {
	dl := goytdlp.New()
	err := applyYtdlpOptions(dl, map[string]any{
		"format":          "bestvideo+bestaudio",
		"proxy":           "socks5://127.0.0.1:9050",
		"write-subs":      true,
		"write-thumbnail": false,
	})
	if err != nil {
		t.Fatalf("supported options rejected: %v", err)
	}
}

func TestApplyYtdlpOptionsRejectsUnknownKey(t *testing.T) {
	err := applyYtdlpOptions(goytdlp.New(), map[string]any{"downloader-args": "ffmpeg:-loglevel quiet"})
	if err == nil {
		t.Fatal("expected error for unsupported option")
	}
	if !strings.Contains(err.Error(), "downloader-args") {
		t.Fatalf("error missing offending key: %v", err)
	}
}

func TestDurationSeconds(t *testing.T) {
	if durationSeconds(nil) != 0 {
		t.Fatal("nil should map to zero")
	}
	seconds := 12.5
	if got := durationSeconds(&seconds); got != 12500*time.Millisecond {
		t.Fatalf("duration = %s, want 12.5s", got)
	}
}

func TestYtdlpFetchWrapsExtractionError(t *testing.T) {
	client := NewYtdlpClient(nil, WithYtdlpRunner(func(context.Context, Request, string) ([]extracted, error) {
		return nil, errors.New("HTTP Error 404")
	}))

	_, err := client.Fetch(context.Background(), Request{URL: "https://youtube.com/watch?v=gone"})
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("error should wrap ErrExtraction: %v", err)
	}
}

func TestYtdlpFetchEmptyResultIsExtractionError(t *testing.T) {
	client := NewYtdlpClient(nil, WithYtdlpRunner(func(context.Context, Request, string) ([]extracted, error) {
		return nil, nil
	}))

	_, err := client.Fetch(context.Background(), Request{URL: "https://twitter.com/u/status/1"})
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("error should wrap ErrExtraction: %v", err)
	}
}

func TestYtdlpFetchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := NewYtdlpClient(nil, WithYtdlpRunner(func(ctx context.Context, _ Request, _ string) ([]extracted, error) {
		cancel()
		return nil, context.Canceled
	}))

	_, err := client.Fetch(ctx, Request{URL: "https://instagram.com/p/x"})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("error should wrap ErrCancelled: %v", err)
	}
}
