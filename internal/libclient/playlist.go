package libclient

import (
	"context"
	"fmt"
	"net/url"

	listdlp "github.com/ytget/ytdlp/v2"

	"fetchd/internal/services"
)

// PlaylistEntry is one video discovered while expanding a playlist URL.
type PlaylistEntry struct {
	URL   string
	Title string
}

// playlistLister fetches playlist items; tests substitute it.
type playlistLister func(ctx context.Context, playlistID string) ([]PlaylistEntry, error)

// PlaylistExpander turns a YouTube playlist URL into the individual video
// URLs so each video becomes its own queue item.
type PlaylistExpander struct {
	list playlistLister
}

// PlaylistOption customizes a PlaylistExpander.
type PlaylistOption func(*PlaylistExpander)

// WithPlaylistLister replaces the playlist lookup, used by tests.
func WithPlaylistLister(list playlistLister) PlaylistOption {
	return func(e *PlaylistExpander) {
		e.list = list
	}
}

// NewPlaylistExpander creates a playlist expander.
func NewPlaylistExpander(opts ...PlaylistOption) *PlaylistExpander {
	expander := &PlaylistExpander{list: listPlaylistItems}
	for _, opt := range opts {
		opt(expander)
	}
	return expander
}

// IsPlaylistURL reports whether the URL names a playlist rather than a
// single video.
func IsPlaylistURL(rawURL string) bool {
	return playlistID(rawURL) != ""
}

// Expand returns one entry per playlist video, in playlist order.
func (e *PlaylistExpander) Expand(ctx context.Context, rawURL string) ([]PlaylistEntry, error) {
	id := playlistID(rawURL)
	if id == "" {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "expand",
			fmt.Sprintf("url has no playlist id: %s", rawURL), nil)
	}
	entries, err := e.list(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "expand",
			fmt.Sprintf("list playlist %s", id), err)
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrExtraction, "libclient", "expand",
			fmt.Sprintf("playlist %s is empty", id), nil)
	}
	return entries, nil
}

func playlistID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("list")
}

func listPlaylistItems(ctx context.Context, id string) ([]PlaylistEntry, error) {
	d := listdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]PlaylistEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, PlaylistEntry{
			URL:   fmt.Sprintf("https://www.youtube.com/watch?v=%s", item.VideoID),
			Title: item.Title,
		})
	}
	return entries, nil
}
