// Package configmerge resolves the effective option set for a single
// download by layering per-request overrides on top of the file-level
// extractor configuration.
package configmerge

import (
	"fmt"
	"sort"
	"time"

	"fetchd/internal/config"
	"fetchd/internal/platform"
	"fetchd/internal/services"
)

// Settings is the fully resolved configuration handed to an execution path.
type Settings struct {
	UserAgent string
	Retries   int
	Timeout   time.Duration
	Verify    bool
	// Options are the merged extractor options. Request values win over
	// file values key by key; nested tables merge recursively.
	Options map[string]any
}

// Resolve merges the file-level extractor options for the platform with the
// per-request overrides and validates the result. Neither input is mutated.
func Resolve(cfg *config.Config, p platform.Platform, request map[string]any) (Settings, error) {
	merged := Merge(cfg.ExtractorOptions(p.String()), request)
	if err := validateOptions(merged); err != nil {
		return Settings{}, err
	}
	return Settings{
		UserAgent: cfg.Downloader.UserAgent,
		Retries:   cfg.Downloader.Retries,
		Timeout:   time.Duration(cfg.Downloader.Timeout) * time.Second,
		Verify:    cfg.Downloader.Verify,
		Options:   merged,
	}, nil
}

// Merge returns a new map with override layered on top of base. Scalar and
// list values in override replace base values wholesale; nested maps merge
// recursively. Merge is idempotent: merging the same override twice yields
// the same result.
func Merge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		merged[key] = copyValue(value)
	}
	for key, value := range override {
		existing, ok := merged[key]
		if ok {
			existingMap, existingIsMap := existing.(map[string]any)
			overrideMap, overrideIsMap := value.(map[string]any)
			if existingIsMap && overrideIsMap {
				merged[key] = Merge(existingMap, overrideMap)
				continue
			}
		}
		merged[key] = copyValue(value)
	}
	return merged
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Merge(typed, nil)
	case []any:
		cp := make([]any, len(typed))
		for i, element := range typed {
			cp[i] = copyValue(element)
		}
		return cp
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}

// validateOptions rejects option values the execution paths cannot express.
// The first problem fails the whole request before any download work starts.
func validateOptions(options map[string]any) error {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			return services.Wrap(services.ErrConfiguration, "configmerge", "validate", "option keys must not be empty", nil)
		}
		if err := validateValue(key, options[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(key string, value any) error {
	switch typed := value.(type) {
	case string, bool, int, int64, float64, time.Duration:
		return nil
	case []any:
		for _, element := range typed {
			if _, ok := element.(string); !ok {
				return services.Wrap(services.ErrConfiguration, "configmerge", "validate",
					fmt.Sprintf("option %q: list values must be strings", key), nil)
			}
		}
		return nil
	case []string:
		return nil
	case map[string]any:
		return validateOptions(typed)
	case nil:
		return services.Wrap(services.ErrConfiguration, "configmerge", "validate",
			fmt.Sprintf("option %q: value must not be null", key), nil)
	default:
		return services.Wrap(services.ErrConfiguration, "configmerge", "validate",
			fmt.Sprintf("option %q: unsupported value type %T", key, value), nil)
	}
}
