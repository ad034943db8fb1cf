package config

// Default returns the built-in configuration. Values here are the single
// source of truth for defaults; Load starts from this and overlays the file.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: "~/fetchd/downloads",
			StagingDir:  "~/fetchd/staging",
			LogDir:      "~/fetchd/logs",
			APIBind:     "127.0.0.1:7790",
		},
		Modes: Modes{
			TwitterUseLibrary:   false,
			RedditUseLibrary:    false,
			InstagramUseLibrary: false,
			YouTubeUseLibrary:   false,
			FallbackToProcess:   true,
		},
		Extractor: map[string]map[string]any{},
		Downloader: Downloader{
			Retries:   3,
			Timeout:   30,
			Verify:    true,
			UserAgent: "fetchd/1.0",
		},
		Queue: Queue{
			MaxConcurrency:       2,
			WorkerPoolSize:       4,
			LibraryTimeout:       600,
			ProcessTimeout:       900,
			OutputCaptureLimitKB: 256,
		},
		Tools: Tools{
			YtdlpBinary:     "yt-dlp",
			GalleryDLBinary: "gallery-dl",
		},
		Notifications: Notifications{
			Enabled:  false,
			RedisURL: "redis://localhost:6379/0",
			Channel:  "fetchd:events",
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
