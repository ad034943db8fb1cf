package notify_test

import (
	"context"
	"testing"
	"time"

	"fetchd/internal/config"
	"fetchd/internal/media"
	"fetchd/internal/notify"
	"fetchd/internal/platform"
	"fetchd/internal/queue"
)

func TestEventFromItemMapsResult(t *testing.T) {
	result := media.Success(platform.Reddit, "https://reddit.com/r/pics/comments/abc/x", "Sunset",
		[]media.FileInfo{{Path: "/downloads/a.jpg"}}, media.MethodLibrary)
	item := queue.Item{
		ID:            7,
		CorrelationID: "corr-7",
		Request:       queue.Request{URL: result.SourceURL, Platform: platform.Reddit},
		Status:        queue.StatusCompleted,
		Result:        &result,
		FinishedAt:    time.Now().UTC(),
	}

	event := notify.EventFromItem(item)

	if event.Type != "download_finished" {
		t.Fatalf("type = %q", event.Type)
	}
	if event.Status != "completed" || event.Method != "library" {
		t.Fatalf("status/method = %q/%q", event.Status, event.Method)
	}
	if event.FileCount != 1 || event.Title != "Sunset" {
		t.Fatalf("payload wrong: %+v", event)
	}
}

func TestEventFromItemWithoutResult(t *testing.T) {
	item := queue.Item{
		ID:      3,
		Request: queue.Request{URL: "https://x.com/u/status/1", Platform: platform.Twitter},
		Status:  queue.StatusCancelled,
	}

	event := notify.EventFromItem(item)

	if event.Method != "" || event.Error != "" {
		t.Fatalf("resultless event should be empty: %+v", event)
	}
}

func TestFromConfigDisabledReturnsNop(t *testing.T) {
	publisher, err := notify.FromConfig(config.Notifications{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if err := publisher.Publish(context.Background(), notify.Event{}); err != nil {
		t.Fatalf("nop publish failed: %v", err)
	}
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := notify.NewRedis(config.Notifications{RedisURL: "not-a-url", Channel: "c"}, nil)
	if err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}
