package config

import (
	"fmt"
	"strings"

	"fetchd/internal/platform"
	"fetchd/internal/services"
)

// Validate checks the configuration for invalid or inconsistent values.
// All problems are reported at once so a bad file can be fixed in one edit.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.DownloadDir == "" {
		problems = append(problems, "paths.download_dir must not be empty")
	}
	if c.Paths.StagingDir == "" {
		problems = append(problems, "paths.staging_dir must not be empty")
	}
	if c.Paths.APIBind == "" {
		problems = append(problems, "paths.api_bind must not be empty")
	}

	if c.Downloader.Retries < 0 {
		problems = append(problems, fmt.Sprintf("downloader.retries must be >= 0 (got %d)", c.Downloader.Retries))
	}
	if c.Downloader.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("downloader.timeout must be > 0 (got %d)", c.Downloader.Timeout))
	}
	if c.Downloader.UserAgent == "" {
		problems = append(problems, "downloader.user_agent must not be empty")
	}

	if c.Queue.MaxConcurrency <= 0 {
		problems = append(problems, fmt.Sprintf("queue.max_concurrency must be > 0 (got %d)", c.Queue.MaxConcurrency))
	}
	if c.Queue.WorkerPoolSize < c.Queue.MaxConcurrency {
		problems = append(problems, fmt.Sprintf("queue.worker_pool_size must be >= queue.max_concurrency (got %d < %d)", c.Queue.WorkerPoolSize, c.Queue.MaxConcurrency))
	}
	if c.Queue.LibraryTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("queue.library_timeout must be > 0 (got %d)", c.Queue.LibraryTimeout))
	}
	if c.Queue.ProcessTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("queue.process_timeout must be > 0 (got %d)", c.Queue.ProcessTimeout))
	}
	if c.Queue.OutputCaptureLimitKB <= 0 {
		problems = append(problems, fmt.Sprintf("queue.output_capture_limit_kb must be > 0 (got %d)", c.Queue.OutputCaptureLimitKB))
	}

	if c.Tools.YtdlpBinary == "" {
		problems = append(problems, "tools.ytdlp_binary must not be empty")
	}
	if c.Tools.GalleryDLBinary == "" {
		problems = append(problems, "tools.gallerydl_binary must not be empty")
	}

	if c.Notifications.Enabled {
		if c.Notifications.RedisURL == "" {
			problems = append(problems, "notifications.redis_url must not be empty when notifications are enabled")
		}
		if c.Notifications.Channel == "" {
			problems = append(problems, "notifications.channel must not be empty when notifications are enabled")
		}
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json (got %q)", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level))
	}

	for name := range c.Extractor {
		if _, ok := platform.Parse(name); !ok {
			problems = append(problems, fmt.Sprintf("extractor.%s is not a supported platform", name))
		}
	}

	if len(problems) > 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate", strings.Join(problems, "; "), nil)
	}
	return nil
}
