// Package flags resolves the feature flags selecting the execution path per
// platform. Flags are read once at startup from config plus environment
// overrides and are immutable for the life of the process; in-flight
// downloads never see a mid-run change.
package flags

import (
	"os"
	"strconv"

	"fetchd/internal/config"
	"fetchd/internal/platform"
)

// FallbackEnvKey toggles the library-to-process fallback policy.
const FallbackEnvKey = "FALLBACK_TO_PROCESS"

// LookupFunc mirrors os.LookupEnv; tests inject their own.
type LookupFunc func(key string) (string, bool)

// FeatureFlags is an immutable snapshot of the execution-path selection.
type FeatureFlags struct {
	useLibrary map[platform.Platform]bool
	fallback   bool
}

// Resolve builds the flag snapshot from the configured modes with
// environment overrides applied on top. A platform with no configuration and
// no environment variable runs in process mode.
func Resolve(modes config.Modes, lookup LookupFunc) FeatureFlags {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	flags := FeatureFlags{
		useLibrary: map[platform.Platform]bool{
			platform.Twitter:   modes.TwitterUseLibrary,
			platform.Reddit:    modes.RedditUseLibrary,
			platform.Instagram: modes.InstagramUseLibrary,
			platform.YouTube:   modes.YouTubeUseLibrary,
		},
		fallback: modes.FallbackToProcess,
	}

	for _, p := range platform.All() {
		if value, ok := lookupBool(lookup, p.EnvKey()); ok {
			flags.useLibrary[p] = value
		}
	}
	if value, ok := lookupBool(lookup, FallbackEnvKey); ok {
		flags.fallback = value
	}

	return flags
}

func lookupBool(lookup LookupFunc, key string) (bool, bool) {
	raw, ok := lookup(key)
	if !ok {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		// Malformed values are ignored rather than flipping a platform
		// into an execution path the operator never asked for.
		return false, false
	}
	return parsed, true
}

// UseLibrary reports whether the platform should run the in-process library
// path. Unknown platforms default to process mode.
func (f FeatureFlags) UseLibrary(p platform.Platform) bool {
	return f.useLibrary[p]
}

// FallbackEnabled reports whether recoverable library failures retry through
// the external tool.
func (f FeatureFlags) FallbackEnabled() bool {
	return f.fallback
}
