package libclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"fetchd/internal/logging"
	"fetchd/internal/services"
)

// extracted is the subset of yt-dlp extraction info the client consumes.
type extracted struct {
	Filename string
	Title    string
	Duration time.Duration
}

// ytdlpRunner performs the actual yt-dlp invocation; tests substitute it.
type ytdlpRunner func(ctx context.Context, req Request, outputTemplate string) ([]extracted, error)

// YtdlpClient drives yt-dlp through its Go bindings. It serves every
// platform yt-dlp has an extractor for; fetchd uses it for Twitter,
// Instagram, and YouTube.
type YtdlpClient struct {
	logger *slog.Logger
	run    ytdlpRunner
}

// YtdlpOption customizes a YtdlpClient.
type YtdlpOption func(*YtdlpClient)

// WithYtdlpRunner replaces the yt-dlp invocation, used by tests.
func WithYtdlpRunner(run ytdlpRunner) YtdlpOption {
	return func(c *YtdlpClient) {
		c.run = run
	}
}

// NewYtdlpClient creates a library client backed by yt-dlp.
func NewYtdlpClient(logger *slog.Logger, opts ...YtdlpOption) *YtdlpClient {
	client := &YtdlpClient{
		logger: logging.NewComponentLogger(logger, "libclient-ytdlp"),
		run:    runYtdlp,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Fetch downloads all media for the URL into req.DestDir.
func (c *YtdlpClient) Fetch(ctx context.Context, req Request) ([]RawItem, error) {
	template := filepath.Join(req.DestDir, "%(title)s.%(ext)s")

	c.logger.Debug("library fetch",
		logging.String(logging.FieldPlatform, req.Platform.String()),
		logging.String("url", req.URL),
	)

	entries, err := c.run(ctx, req, template)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, services.Wrap(services.ErrCancelled, "libclient", "fetch", "download cancelled", err)
		}
		return nil, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("yt-dlp extraction failed for %s", req.URL), err)
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("no media extracted from %s", req.URL), nil)
	}

	items := make([]RawItem, 0, len(entries))
	for _, entry := range entries {
		if entry.Filename == "" {
			continue
		}
		item := RawItem{
			Path:      entry.Filename,
			Title:     entry.Title,
			SourceURL: req.URL,
			MimeType:  mime.TypeByExtension(filepath.Ext(entry.Filename)),
			Duration:  entry.Duration,
		}
		if info, statErr := os.Stat(entry.Filename); statErr == nil {
			item.SizeBytes = info.Size()
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("extraction reported no files for %s", req.URL), nil)
	}
	return items, nil
}

func runYtdlp(ctx context.Context, req Request, outputTemplate string) ([]extracted, error) {
	dl := goytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		Output(outputTemplate)

	if req.Settings.UserAgent != "" {
		dl.UserAgent(req.Settings.UserAgent)
	}
	if req.Settings.Retries > 0 {
		dl.Retries(strconv.Itoa(req.Settings.Retries))
	}
	if err := applyYtdlpOptions(dl, req.Settings.Options); err != nil {
		return nil, err
	}

	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	info, err := result.GetExtractedInfo()
	if err != nil {
		return nil, err
	}

	entries := make([]extracted, 0, len(info))
	for _, entry := range info {
		if entry == nil || entry.Filename == nil {
			continue
		}
		item := extracted{Filename: *entry.Filename}
		if entry.Title != nil {
			item.Title = *entry.Title
		}
		item.Duration = durationSeconds(entry.Duration)
		entries = append(entries, item)
	}
	return entries, nil
}

// applyYtdlpOptions maps merged extractor options onto the builder. The
// bindings expose one method per tool flag, so only the option keys fetchd
// documents are translated; anything else reports an extraction-path limit
// and lets the fallback policy route the request to the external tool,
// which accepts arbitrary flags.
func applyYtdlpOptions(dl *goytdlp.Command, options map[string]any) error {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := options[key]
		switch key {
		case "format":
			dl.Format(fmt.Sprint(value))
		case "proxy":
			dl.Proxy(fmt.Sprint(value))
		case "cookies":
			dl.Cookies(fmt.Sprint(value))
		case "limit-rate":
			dl.LimitRate(fmt.Sprint(value))
		case "playlist-items":
			dl.PlaylistItems(fmt.Sprint(value))
		case "write-subs":
			if enabled, ok := value.(bool); ok && enabled {
				dl.WriteSubs()
			}
		case "write-thumbnail":
			if enabled, ok := value.(bool); ok && enabled {
				dl.WriteThumbnail()
			}
		default:
			return fmt.Errorf("option %q is not supported by the in-process client", key)
		}
	}
	return nil
}

func durationSeconds(seconds *float64) time.Duration {
	if seconds == nil || *seconds <= 0 {
		return 0
	}
	return time.Duration(*seconds * float64(time.Second))
}
