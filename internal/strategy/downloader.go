package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fetchd/internal/config"
	"fetchd/internal/configmerge"
	"fetchd/internal/flags"
	"fetchd/internal/libclient"
	"fetchd/internal/logging"
	"fetchd/internal/media"
	"fetchd/internal/platform"
	"fetchd/internal/services"
)

type toolSpec struct {
	binary string
	args   func(settings configmerge.Settings, destDir, rawURL string) []string
}

// Downloader is the shared execution engine behind every platform strategy.
// The flag snapshot decides the path; the fallback policy decides what a
// recoverable library failure does next. Process failures are terminal.
type Downloader struct {
	plat    platform.Platform
	cfg     *config.Config
	flags   flags.FeatureFlags
	library libclient.Client
	proc    ProcessRunner
	tool    toolSpec
	logger  *slog.Logger
}

// Option customizes a Downloader.
type Option func(*Downloader)

// WithLibraryClient replaces the library client, used by tests.
func WithLibraryClient(client libclient.Client) Option {
	return func(d *Downloader) {
		d.library = client
	}
}

// NewTwitter builds the Twitter strategy: yt-dlp bindings in library mode,
// the yt-dlp binary in process mode.
func NewTwitter(cfg *config.Config, fl flags.FeatureFlags, proc ProcessRunner, logger *slog.Logger, opts ...Option) *Downloader {
	return newDownloader(platform.Twitter, cfg, fl, proc, logger,
		libclient.NewYtdlpClient(logger),
		toolSpec{binary: cfg.Tools.YtdlpBinary, args: ytdlpArgs}, opts)
}

// NewReddit builds the Reddit strategy: the native JSON client in library
// mode, gallery-dl in process mode.
func NewReddit(cfg *config.Config, fl flags.FeatureFlags, proc ProcessRunner, logger *slog.Logger, opts ...Option) *Downloader {
	return newDownloader(platform.Reddit, cfg, fl, proc, logger,
		libclient.NewRedditClient(logger),
		toolSpec{binary: cfg.Tools.GalleryDLBinary, args: galleryDLArgs}, opts)
}

// NewInstagram builds the Instagram strategy: yt-dlp on both paths.
func NewInstagram(cfg *config.Config, fl flags.FeatureFlags, proc ProcessRunner, logger *slog.Logger, opts ...Option) *Downloader {
	return newDownloader(platform.Instagram, cfg, fl, proc, logger,
		libclient.NewYtdlpClient(logger),
		toolSpec{binary: cfg.Tools.YtdlpBinary, args: ytdlpArgs}, opts)
}

// NewYouTube builds the YouTube strategy: yt-dlp on both paths.
func NewYouTube(cfg *config.Config, fl flags.FeatureFlags, proc ProcessRunner, logger *slog.Logger, opts ...Option) *Downloader {
	return newDownloader(platform.YouTube, cfg, fl, proc, logger,
		libclient.NewYtdlpClient(logger),
		toolSpec{binary: cfg.Tools.YtdlpBinary, args: ytdlpArgs}, opts)
}

func newDownloader(p platform.Platform, cfg *config.Config, fl flags.FeatureFlags, proc ProcessRunner, logger *slog.Logger, library libclient.Client, tool toolSpec, opts []Option) *Downloader {
	d := &Downloader{
		plat:    p,
		cfg:     cfg,
		flags:   fl,
		library: library,
		proc:    proc,
		tool:    tool,
		logger:  logging.NewComponentLogger(logger, "strategy-"+p.String()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Platform identifies which platform this strategy serves.
func (d *Downloader) Platform() platform.Platform {
	return d.plat
}

// SupportsURL reports whether the URL belongs to this strategy's platform.
func (d *Downloader) SupportsURL(rawURL string) bool {
	detected, ok := platform.Detect(rawURL)
	return ok && detected == d.plat
}

// Download fetches all media for the URL. Failures are embedded in the
// returned metadata; the caller never needs to distinguish error shapes per
// execution path.
func (d *Downloader) Download(ctx context.Context, rawURL string, options map[string]any) media.Metadata {
	settings, err := configmerge.Resolve(d.cfg, d.plat, options)
	if err != nil {
		return d.failure(rawURL, err)
	}

	if !d.flags.UseLibrary(d.plat) {
		meta, procErr := d.runProcess(ctx, rawURL, settings)
		if procErr != nil {
			return d.failure(rawURL, procErr)
		}
		return meta
	}

	meta, libErr := d.runLibrary(ctx, rawURL, settings)
	if libErr == nil {
		return meta
	}
	if services.IsCancellation(libErr) {
		return d.failure(rawURL, libErr)
	}
	if !d.flags.FallbackEnabled() || !services.FallbackEligible(libErr) {
		return d.failure(rawURL, libErr)
	}

	d.logger.Warn("library path failed, retrying through external tool",
		logging.String("url", rawURL),
		logging.Error(libErr),
	)
	meta, procErr := d.runProcess(ctx, rawURL, settings)
	if procErr != nil {
		return d.failure(rawURL, fmt.Errorf("library path: %s; process fallback: %s",
			services.UserMessage(libErr), services.UserMessage(procErr)))
	}
	return meta
}

func (d *Downloader) runLibrary(ctx context.Context, rawURL string, settings configmerge.Settings) (media.Metadata, error) {
	timeout := time.Duration(d.cfg.Queue.LibraryTimeout) * time.Second
	libCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items, err := d.library.Fetch(libCtx, libclient.Request{
		URL:      rawURL,
		Platform: d.plat,
		DestDir:  d.cfg.Paths.DownloadDir,
		Settings: settings,
	})
	if err != nil {
		if errors.Is(libCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return media.Metadata{}, services.Wrap(services.ErrTimeout, "strategy", "download",
				fmt.Sprintf("library path exceeded %s", timeout), err)
		}
		return media.Metadata{}, err
	}

	files := make([]media.FileInfo, 0, len(items))
	title := ""
	for _, item := range items {
		if title == "" {
			title = item.Title
		}
		files = append(files, media.FileInfo{
			Path:      item.Path,
			Title:     item.Title,
			SourceURL: item.SourceURL,
			SizeBytes: item.SizeBytes,
			MimeType:  item.MimeType,
			Duration:  int(item.Duration.Seconds()),
		})
	}
	if err := verifyFiles(settings, files); err != nil {
		return media.Metadata{}, err
	}
	if title == "" {
		title = media.FallbackTitle(d.plat)
	}

	d.logger.Info("download complete",
		logging.String("url", rawURL),
		logging.String(logging.FieldMethod, string(media.MethodLibrary)),
		logging.Int("files", len(files)),
	)
	return media.Success(d.plat, rawURL, title, files, media.MethodLibrary), nil
}

func (d *Downloader) runProcess(ctx context.Context, rawURL string, settings configmerge.Settings) (media.Metadata, error) {
	timeout := time.Duration(d.cfg.Queue.ProcessTimeout) * time.Second
	args := d.tool.args(settings, d.cfg.Paths.DownloadDir, rawURL)

	result, err := d.proc.Run(ctx, d.tool.binary, args, d.cfg.Paths.StagingDir, timeout)
	if err != nil {
		return media.Metadata{}, err
	}

	paths := outputPaths(result.Stdout)
	if len(paths) == 0 {
		return media.Metadata{}, services.Wrap(services.ErrProcess, "strategy", "download",
			fmt.Sprintf("%s reported no downloaded files for %s", d.tool.binary, rawURL), nil)
	}

	files := make([]media.FileInfo, 0, len(paths))
	for _, path := range paths {
		file := media.FileInfo{
			Path:      path,
			Title:     titleFromPath(path),
			SourceURL: rawURL,
			MimeType:  mime.TypeByExtension(filepath.Ext(path)),
		}
		if info, statErr := os.Stat(path); statErr == nil {
			file.SizeBytes = info.Size()
		}
		files = append(files, file)
	}
	if err := verifyFiles(settings, files); err != nil {
		return media.Metadata{}, err
	}
	title := files[0].Title
	if title == "" {
		title = media.FallbackTitle(d.plat)
	}

	d.logger.Info("download complete",
		logging.String("url", rawURL),
		logging.String(logging.FieldMethod, string(media.MethodProcess)),
		logging.Int("files", len(files)),
		logging.Duration("tool_runtime", result.Duration),
	)
	return media.Success(d.plat, rawURL, title, files, media.MethodProcess), nil
}

func (d *Downloader) failure(rawURL string, err error) media.Metadata {
	d.logger.Error("download failed",
		logging.String("url", rawURL),
		logging.Error(err),
	)
	return media.Failure(d.plat, rawURL, services.UserMessage(err))
}

// verifyFiles confirms downloaded files exist and are non-empty before a
// result is reported as success.
func verifyFiles(settings configmerge.Settings, files []media.FileInfo) error {
	if !settings.Verify {
		return nil
	}
	for _, file := range files {
		info, err := os.Stat(file.Path)
		if err != nil {
			return services.Wrap(services.ErrProcess, "strategy", "verify",
				fmt.Sprintf("downloaded file missing: %s", file.Path), err)
		}
		if info.Size() == 0 {
			return services.Wrap(services.ErrProcess, "strategy", "verify",
				fmt.Sprintf("downloaded file empty: %s", file.Path), nil)
		}
	}
	return nil
}

// outputPaths extracts downloaded file paths from tool stdout. yt-dlp prints
// one path per line via --print after_move:filepath; gallery-dl prints the
// path of each file it writes, prefixing skipped entries with "# ".
func outputPaths(stdout string) []string {
	var paths []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "# "))
		if line == "" || !filepath.IsAbs(line) {
			continue
		}
		paths = append(paths, line)
	}
	return paths
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
