package strategy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"fetchd/internal/config"
	"fetchd/internal/flags"
	"fetchd/internal/libclient"
	"fetchd/internal/media"
	"fetchd/internal/platform"
	"fetchd/internal/procexec"
	"fetchd/internal/services"
)

type fakeClient struct {
	items []libclient.RawItem
	err   error
	calls int
}

func (f *fakeClient) Fetch(ctx context.Context, req libclient.Request) ([]libclient.RawItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeRunner struct {
	result procexec.Result
	err    error
	calls  int
	name   string
	args   []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, workdir string, timeout time.Duration) (procexec.Result, error) {
	f.calls++
	f.name = name
	f.args = append([]string(nil), args...)
	if f.err != nil {
		return f.result, f.err
	}
	return f.result, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DownloadDir = t.TempDir()
	cfg.Paths.StagingDir = t.TempDir()
	return &cfg
}

func testFlags(t *testing.T, env map[string]string) flags.FeatureFlags {
	t.Helper()
	return flags.Resolve(config.Modes{}, func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})
}

func writeFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("media-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDownloadLibraryPathSuccess(t *testing.T) {
	cfg := testConfig(t)
	file := writeFixture(t, cfg.Paths.DownloadDir, "clip.mp4")
	client := &fakeClient{items: []libclient.RawItem{{Path: file, Title: "Clip", SourceURL: "u", SizeBytes: 11}}}
	runner := &fakeRunner{}

	fl := testFlags(t, map[string]string{"YOUTUBE_USE_LIBRARY": "true"})
	d := NewYouTube(cfg, fl, runner, nil, WithLibraryClient(client))

	meta := d.Download(context.Background(), "https://youtube.com/watch?v=abc", nil)

	if !meta.OK() {
		t.Fatalf("expected success, got %q", meta.RawError)
	}
	if meta.DownloadMethod != media.MethodLibrary {
		t.Fatalf("method = %q, want library", meta.DownloadMethod)
	}
	if runner.calls != 0 {
		t.Fatal("process path must not run when library succeeds")
	}
	if meta.Title != "Clip" {
		t.Fatalf("title = %q", meta.Title)
	}
}

func TestDownloadFallbackToProcess(t *testing.T) {
	cfg := testConfig(t)
	file := writeFixture(t, cfg.Paths.DownloadDir, "video.mp4")
	client := &fakeClient{err: services.Wrap(services.ErrExtraction, "libclient", "fetch", "geo restricted", nil)}
	runner := &fakeRunner{result: procexec.Result{Stdout: file + "\n"}}

	fl := testFlags(t, map[string]string{"YOUTUBE_USE_LIBRARY": "true", "FALLBACK_TO_PROCESS": "true"})
	d := NewYouTube(cfg, fl, runner, nil, WithLibraryClient(client))

	meta := d.Download(context.Background(), "https://youtube.com/watch?v=abc", nil)

	if !meta.OK() {
		t.Fatalf("expected fallback success, got %q", meta.RawError)
	}
	if meta.DownloadMethod != media.MethodProcess {
		t.Fatalf("method = %q, want process", meta.DownloadMethod)
	}
	if client.calls != 1 || runner.calls != 1 {
		t.Fatalf("calls library=%d process=%d, want 1/1", client.calls, runner.calls)
	}
}

func TestDownloadFallbackDisabled(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{err: services.Wrap(services.ErrExtraction, "libclient", "fetch", "geo restricted", nil)}
	runner := &fakeRunner{}

	fl := testFlags(t, map[string]string{"YOUTUBE_USE_LIBRARY": "true", "FALLBACK_TO_PROCESS": "false"})
	d := NewYouTube(cfg, fl, runner, nil, WithLibraryClient(client))

	meta := d.Download(context.Background(), "https://youtube.com/watch?v=abc", nil)

	if meta.OK() {
		t.Fatal("expected failure")
	}
	if meta.RawError == "" || !strings.Contains(meta.RawError, "geo restricted") {
		t.Fatalf("raw error = %q", meta.RawError)
	}
	if meta.DownloadMethod != "" {
		t.Fatalf("method should be unset on failure, got %q", meta.DownloadMethod)
	}
	if runner.calls != 0 {
		t.Fatal("process path must not run when fallback is disabled")
	}
}

func TestDownloadProcessModeDefault(t *testing.T) {
	cfg := testConfig(t)
	file := writeFixture(t, cfg.Paths.DownloadDir, "post.jpg")
	client := &fakeClient{}
	runner := &fakeRunner{result: procexec.Result{Stdout: file + "\n"}}

	d := NewReddit(cfg, testFlags(t, nil), runner, nil, WithLibraryClient(client))

	meta := d.Download(context.Background(), "https://reddit.com/r/pics/comments/abc/x", nil)

	if !meta.OK() {
		t.Fatalf("expected success, got %q", meta.RawError)
	}
	if client.calls != 0 {
		t.Fatal("library path must not run without its flag")
	}
	if runner.name != cfg.Tools.GalleryDLBinary {
		t.Fatalf("tool = %q, want %q", runner.name, cfg.Tools.GalleryDLBinary)
	}
}

func TestDownloadProcessResultTitleFromFirstFile(t *testing.T) {
	cfg := testConfig(t)
	file := writeFixture(t, cfg.Paths.DownloadDir, "Big_Buck_Bunny.mp4")
	runner := &fakeRunner{result: procexec.Result{Stdout: file + "\n"}}

	d := NewYouTube(cfg, testFlags(t, nil), runner, nil)

	meta := d.Download(context.Background(), "https://youtube.com/watch?v=abc", nil)

	if !meta.OK() {
		t.Fatalf("expected success, got %q", meta.RawError)
	}
	if meta.Title != "Big_Buck_Bunny" {
		t.Fatalf("title = %q, want Big_Buck_Bunny", meta.Title)
	}
}

func TestDownloadProcessFailureIsTerminal(t *testing.T) {
	cfg := testConfig(t)
	runner := &fakeRunner{
		result: procexec.Result{ExitCode: 1},
		err:    services.Wrap(services.ErrProcess, "procexec", "run", "exit status 1", nil),
	}
	client := &fakeClient{}

	d := NewYouTube(cfg, testFlags(t, nil), runner, nil, WithLibraryClient(client))

	meta := d.Download(context.Background(), "https://youtube.com/watch?v=abc", nil)

	if meta.OK() {
		t.Fatal("expected failure")
	}
	if client.calls != 0 {
		t.Fatal("process failure must not retry through the library")
	}
	if runner.calls != 1 {
		t.Fatalf("process calls = %d, want exactly 1", runner.calls)
	}
}

func TestDownloadCancellationSkipsFallback(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{err: services.Wrap(services.ErrCancelled, "libclient", "fetch", "download cancelled", context.Canceled)}
	runner := &fakeRunner{}

	fl := testFlags(t, map[string]string{"YOUTUBE_USE_LIBRARY": "true", "FALLBACK_TO_PROCESS": "true"})
	d := NewYouTube(cfg, fl, runner, nil, WithLibraryClient(client))

	meta := d.Download(context.Background(), "https://youtube.com/watch?v=abc", nil)

	if meta.OK() {
		t.Fatal("expected failure")
	}
	if runner.calls != 0 {
		t.Fatal("cancellation must not trigger fallback")
	}
}

func TestDownloadBothPathsFailMergesErrors(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{err: services.Wrap(services.ErrExtraction, "libclient", "fetch", "no formats found", nil)}
	runner := &fakeRunner{err: services.Wrap(services.ErrProcess, "procexec", "run", "exit status 2", nil)}

	fl := testFlags(t, map[string]string{"TWITTER_USE_LIBRARY": "true", "FALLBACK_TO_PROCESS": "true"})
	d := NewTwitter(cfg, fl, runner, nil, WithLibraryClient(client))

	meta := d.Download(context.Background(), "https://x.com/u/status/1", nil)

	if meta.OK() {
		t.Fatal("expected failure")
	}
	for _, want := range []string{"no formats found", "exit status 2"} {
		if !strings.Contains(meta.RawError, want) {
			t.Errorf("raw error %q missing %q", meta.RawError, want)
		}
	}
}

func TestDownloadVerifyRejectsMissingFile(t *testing.T) {
	cfg := testConfig(t)
	runner := &fakeRunner{result: procexec.Result{Stdout: filepath.Join(cfg.Paths.DownloadDir, "gone.mp4") + "\n"}}

	d := NewYouTube(cfg, testFlags(t, nil), runner, nil)

	meta := d.Download(context.Background(), "https://youtube.com/watch?v=abc", nil)

	if meta.OK() {
		t.Fatal("expected verification failure")
	}
	if !strings.Contains(meta.RawError, "missing") {
		t.Fatalf("raw error = %q", meta.RawError)
	}
}

func TestDownloadArgsAreDeterministic(t *testing.T) {
	cfg := testConfig(t)
	file := writeFixture(t, cfg.Paths.DownloadDir, "a.mp4")
	options := map[string]any{"format": "best", "write-subs": true, "audio-quality": 0}

	var captured [][]string
	for i := 0; i < 3; i++ {
		runner := &fakeRunner{result: procexec.Result{Stdout: file + "\n"}}
		d := NewYouTube(cfg, testFlags(t, nil), runner, nil)
		d.Download(context.Background(), "https://youtube.com/watch?v=abc", options)
		captured = append(captured, runner.args)
	}
	if !reflect.DeepEqual(captured[0], captured[1]) || !reflect.DeepEqual(captured[1], captured[2]) {
		t.Fatalf("argv not deterministic:\n%v\n%v\n%v", captured[0], captured[1], captured[2])
	}
}

func TestSelectorRoutesByPlatform(t *testing.T) {
	cfg := testConfig(t)
	selector := NewDefaultSelector(cfg, testFlags(t, nil), &fakeRunner{}, nil)

	strat, err := selector.ForURL("https://www.reddit.com/r/pics/comments/abc/x")
	if err != nil {
		t.Fatalf("ForURL failed: %v", err)
	}
	if strat.Platform() != platform.Reddit {
		t.Fatalf("platform = %s, want reddit", strat.Platform())
	}

	if _, err := selector.ForURL("https://example.com/video"); err == nil {
		t.Fatal("expected error for unsupported url")
	}
}
