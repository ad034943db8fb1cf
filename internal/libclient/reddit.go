package libclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fetchd/internal/logging"
	"fetchd/internal/services"
)

// RedditClient fetches posts through Reddit's public JSON endpoints. Reddit
// media is plain HTTP once the post JSON is resolved, so no external tool or
// binding is needed on the library path.
type RedditClient struct {
	logger *slog.Logger
	http   *http.Client
}

// RedditOption customizes a RedditClient.
type RedditOption func(*RedditClient)

// WithRedditHTTPClient replaces the HTTP client, used by tests.
func WithRedditHTTPClient(client *http.Client) RedditOption {
	return func(c *RedditClient) {
		c.http = client
	}
}

// NewRedditClient creates a library client for Reddit posts.
func NewRedditClient(logger *slog.Logger, opts ...RedditOption) *RedditClient {
	client := &RedditClient{
		logger: logging.NewComponentLogger(logger, "libclient-reddit"),
		http:   &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type redditPost struct {
	Title   string `json:"title"`
	IsVideo bool   `json:"is_video"`
	URL     string `json:"url_overridden_by_dest"`
	Media   struct {
		RedditVideo struct {
			FallbackURL string  `json:"fallback_url"`
			Duration    float64 `json:"duration"`
		} `json:"reddit_video"`
	} `json:"media"`
	IsGallery     bool `json:"is_gallery"`
	MediaMetadata map[string]struct {
		Source struct {
			URL string `json:"u"`
		} `json:"s"`
	} `json:"media_metadata"`
	GalleryData struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
}

// Fetch resolves the post JSON and downloads every media entry it names.
func (c *RedditClient) Fetch(ctx context.Context, req Request) ([]RawItem, error) {
	post, err := c.resolvePost(ctx, req)
	if err != nil {
		return nil, err
	}

	sources, duration := mediaSources(post)
	if len(sources) == 0 {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("post has no downloadable media: %s", req.URL), nil)
	}

	items := make([]RawItem, 0, len(sources))
	for _, source := range sources {
		item, err := c.downloadMedia(ctx, req, post.Title, source)
		if err != nil {
			return nil, err
		}
		item.Duration = duration
		items = append(items, item)
	}
	return items, nil
}

func (c *RedditClient) resolvePost(ctx context.Context, req Request) (*redditPost, error) {
	jsonURL, err := postJSONURL(req.URL)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("invalid reddit url %q", req.URL), err)
	}

	body, _, err := c.get(ctx, jsonURL, req.Settings.UserAgent)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var listings []struct {
		Data struct {
			Children []struct {
				Data redditPost `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&listings); err != nil {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("parse post json for %s", req.URL), err)
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("post not found: %s", req.URL), nil)
	}
	post := listings[0].Data.Children[0].Data
	return &post, nil
}

func (c *RedditClient) downloadMedia(ctx context.Context, req Request, title, source string) (RawItem, error) {
	body, contentType, err := c.get(ctx, source, req.Settings.UserAgent)
	if err != nil {
		return RawItem{}, err
	}
	defer body.Close()

	name := fileName(title, source, contentType)
	dest := filepath.Join(req.DestDir, name)
	file, err := os.Create(dest)
	if err != nil {
		return RawItem{}, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("create %s", dest), err)
	}
	written, err := io.Copy(file, body)
	closeErr := file.Close()
	if err != nil {
		os.Remove(dest)
		if errors.Is(err, context.Canceled) {
			return RawItem{}, services.Wrap(services.ErrCancelled, "libclient", "fetch", "download cancelled", err)
		}
		return RawItem{}, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("download %s", source), err)
	}
	if closeErr != nil {
		return RawItem{}, services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("flush %s", dest), closeErr)
	}

	return RawItem{
		Path:      dest,
		Title:     title,
		SourceURL: req.URL,
		SizeBytes: written,
		MimeType:  contentType,
	}, nil
}

func (c *RedditClient) get(ctx context.Context, rawURL, userAgent string) (io.ReadCloser, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("build request for %s", rawURL), err)
	}
	request.Header.Set("User-Agent", userAgent)

	response, err := c.http.Do(request)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, "", services.Wrap(services.ErrCancelled, "libclient", "fetch", "download cancelled", err)
		}
		return nil, "", services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("request %s", rawURL), err)
	}
	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		return nil, "", services.Wrap(services.ErrExtraction, "libclient", "fetch",
			fmt.Sprintf("%s returned status %d", rawURL, response.StatusCode), nil)
	}
	contentType, _, _ := mime.ParseMediaType(response.Header.Get("Content-Type"))
	return response.Body, contentType, nil
}

// postJSONURL converts a post permalink into its JSON endpoint.
func postJSONURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(parsed.Path, ".json") {
		parsed.Path += ".json"
	}
	return parsed.String(), nil
}

func mediaSources(post *redditPost) ([]string, time.Duration) {
	if post.IsVideo && post.Media.RedditVideo.FallbackURL != "" {
		duration := time.Duration(post.Media.RedditVideo.Duration * float64(time.Second))
		return []string{post.Media.RedditVideo.FallbackURL}, duration
	}
	if post.IsGallery {
		var sources []string
		for _, item := range post.GalleryData.Items {
			meta, ok := post.MediaMetadata[item.MediaID]
			if !ok || meta.Source.URL == "" {
				continue
			}
			// Gallery URLs arrive HTML-escaped in the JSON payload.
			sources = append(sources, html.UnescapeString(meta.Source.URL))
		}
		return sources, 0
	}
	if post.URL != "" {
		return []string{post.URL}, 0
	}
	return nil, 0
}

func fileName(title, source, contentType string) string {
	base := path.Base(source)
	if idx := strings.IndexByte(base, '?'); idx >= 0 {
		base = base[:idx]
	}
	if base == "" || base == "." || base == "/" {
		base = sanitize(title)
	}
	if filepath.Ext(base) == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			base += exts[0]
		}
	}
	return base
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "media"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return replacer.Replace(value)
}
