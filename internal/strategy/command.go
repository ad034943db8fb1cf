package strategy

import (
	"fmt"
	"sort"
	"strconv"

	"fetchd/internal/configmerge"
)

// Command builders are deterministic: the same settings always produce the
// same argv, so invocations are reproducible from logs alone.

func ytdlpArgs(settings configmerge.Settings, destDir, rawURL string) []string {
	args := []string{
		"--no-progress",
		"--restrict-filenames",
		"--print", "after_move:filepath",
		"--retries", strconv.Itoa(settings.Retries),
		"--socket-timeout", strconv.Itoa(int(settings.Timeout.Seconds())),
		"--user-agent", settings.UserAgent,
		"-P", destDir,
	}
	args = append(args, sortedOptionFlags(settings.Options, ytdlpFlag)...)
	return append(args, rawURL)
}

func galleryDLArgs(settings configmerge.Settings, destDir, rawURL string) []string {
	args := []string{
		"--dest", destDir,
		"--retries", strconv.Itoa(settings.Retries),
		"--http-timeout", strconv.Itoa(int(settings.Timeout.Seconds())),
		"--user-agent", settings.UserAgent,
	}
	args = append(args, sortedOptionFlags(settings.Options, galleryDLFlag)...)
	return append(args, rawURL)
}

func sortedOptionFlags(options map[string]any, render func(key string, value any) []string) []string {
	var args []string
	for _, key := range sortedKeys(options) {
		args = append(args, render(key, options[key])...)
	}
	return args
}

func ytdlpFlag(key string, value any) []string {
	// format is special-cased; everything else maps to a long flag.
	if key == "format" {
		return []string{"-f", fmt.Sprint(value)}
	}
	switch typed := value.(type) {
	case bool:
		if typed {
			return []string{"--" + key}
		}
		return nil
	case []any:
		var args []string
		for _, element := range typed {
			args = append(args, "--"+key, fmt.Sprint(element))
		}
		return args
	case []string:
		var args []string
		for _, element := range typed {
			args = append(args, "--"+key, element)
		}
		return args
	case map[string]any:
		// Nested tables use the tool's KEY:ARGS form, one flag per subkey,
		// e.g. downloader-args.ffmpeg -> --downloader-args "ffmpeg:...".
		var args []string
		for _, subkey := range sortedKeys(typed) {
			args = append(args, "--"+key, fmt.Sprintf("%s:%v", subkey, typed[subkey]))
		}
		return args
	default:
		return []string{"--" + key, fmt.Sprint(value)}
	}
}

func galleryDLFlag(key string, value any) []string {
	// gallery-dl takes extractor options as -o key=value pairs.
	switch typed := value.(type) {
	case []any:
		var args []string
		for _, element := range typed {
			args = append(args, "-o", fmt.Sprintf("%s=%v", key, element))
		}
		return args
	case []string:
		var args []string
		for _, element := range typed {
			args = append(args, "-o", fmt.Sprintf("%s=%s", key, element))
		}
		return args
	case map[string]any:
		// Nested tables flatten to dotted keys, e.g. -o extractor.reddit.videos=true.
		var args []string
		for _, subkey := range sortedKeys(typed) {
			args = append(args, galleryDLFlag(key+"."+subkey, typed[subkey])...)
		}
		return args
	default:
		return []string{"-o", fmt.Sprintf("%s=%v", key, value)}
	}
}

func sortedKeys(options map[string]any) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
