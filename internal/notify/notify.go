// Package notify publishes download completion events so callers can react
// without polling. Events go out on a Redis pub/sub channel; deployments
// without Redis use the no-op publisher.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fetchd/internal/config"
	"fetchd/internal/logging"
	"fetchd/internal/queue"
)

// Event is the payload published for every finished download.
type Event struct {
	Type          string    `json:"type"`
	ItemID        int64     `json:"item_id"`
	CorrelationID string    `json:"correlation_id"`
	URL           string    `json:"url"`
	Platform      string    `json:"platform"`
	Status        string    `json:"status"`
	Method        string    `json:"method,omitempty"`
	Title         string    `json:"title,omitempty"`
	FileCount     int       `json:"file_count,omitempty"`
	Error         string    `json:"error,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

// EventFromItem maps a terminal queue item to its published event.
func EventFromItem(item queue.Item) Event {
	event := Event{
		Type:          "download_finished",
		ItemID:        item.ID,
		CorrelationID: item.CorrelationID,
		URL:           item.Request.URL,
		Platform:      item.Request.Platform.String(),
		Status:        string(item.Status),
		FinishedAt:    item.FinishedAt,
	}
	if item.Result != nil {
		event.Method = string(item.Result.DownloadMethod)
		event.Title = item.Result.Title
		event.FileCount = len(item.Result.Files)
		event.Error = item.Result.RawError
	}
	return event
}

// Publisher delivers events to interested callers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// RedisPublisher publishes events to a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedis creates a publisher for the configured Redis channel.
func NewRedis(cfg config.Notifications, logger *slog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisPublisher{
		client:  redis.NewClient(opts),
		channel: cfg.Channel,
		logger:  logging.NewComponentLogger(logger, "notify"),
	}, nil
}

// Publish sends one event. Delivery is best-effort; a failed publish is
// logged by the caller and never fails the download itself.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	p.logger.Debug("event published",
		logging.Int64(logging.FieldItemID, event.ItemID),
		logging.String("channel", p.channel),
	)
	return nil
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// FromConfig returns the configured publisher, or the no-op publisher when
// notifications are disabled.
func FromConfig(cfg config.Notifications, logger *slog.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return NopPublisher{}, nil
	}
	return NewRedis(cfg, logger)
}
