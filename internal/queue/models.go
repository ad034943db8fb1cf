package queue

import (
	"time"

	"fetchd/internal/media"
	"fetchd/internal/platform"
)

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Request describes one download submitted to the queue.
type Request struct {
	URL      string            `json:"url"`
	Platform platform.Platform `json:"platform"`
	Options  map[string]any    `json:"options,omitempty"`
}

// Item is one queued download and its outcome. Items are returned to callers
// by value; the manager owns the canonical copy.
type Item struct {
	ID            int64           `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	Request       Request         `json:"request"`
	Status        Status          `json:"status"`
	Result        *media.Metadata `json:"result,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     time.Time       `json:"started_at,omitzero"`
	FinishedAt    time.Time       `json:"finished_at,omitzero"`
}

func (i Item) clone() Item {
	cp := i
	if i.Result != nil {
		result := *i.Result
		cp.Result = &result
	}
	cp.Request.Options = copyOptions(i.Request.Options)
	return cp
}

// copyOptions deep-copies an option map so later caller mutations cannot
// reach the canonical item.
func copyOptions(options map[string]any) map[string]any {
	if options == nil {
		return nil
	}
	cp := make(map[string]any, len(options))
	for key, value := range options {
		if nested, ok := value.(map[string]any); ok {
			cp[key] = copyOptions(nested)
			continue
		}
		cp[key] = value
	}
	return cp
}
