package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid configuration detected before any
	// network or process activity.
	ErrConfiguration = errors.New("configuration error")
	// ErrExtraction marks a library-mode failure; eligible for process
	// fallback when the policy allows it.
	ErrExtraction = errors.New("extraction error")
	// ErrProcess marks a process-mode failure: non-zero exit, spawn failure
	// or timeout. Always terminal, process mode is the last resort.
	ErrProcess = errors.New("process execution error")
	// ErrTimeout marks a wall-clock timeout.
	ErrTimeout = errors.New("timeout")
	// ErrCancelled marks caller-initiated cancellation. Terminal but not a
	// failure to report to the user.
	ErrCancelled = errors.New("cancelled")
	// ErrNotFound marks a missing resource (queue item, executable).
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProcess
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FallbackEligible reports whether a failure may be retried in process mode.
// Only library-mode extraction failures qualify; cancellation and
// configuration errors never do.
func FallbackEligible(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, ErrConfiguration) {
		return false
	}
	return errors.Is(err, ErrExtraction) || errors.Is(err, ErrTimeout)
}

// IsCancellation reports whether the error chain represents a cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// UserMessage strips sentinel prefixes from an error chain, leaving the
// human-readable cause that may cross the API boundary.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	message := err.Error()
	for _, marker := range []error{ErrConfiguration, ErrExtraction, ErrProcess, ErrTimeout, ErrCancelled, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	return strings.TrimSpace(message)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
