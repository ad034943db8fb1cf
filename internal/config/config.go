package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	StagingDir  string `toml:"staging_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
}

// Modes selects the execution path per platform and the global fallback
// policy. Environment variables (<PLATFORM>_USE_LIBRARY, FALLBACK_TO_PROCESS)
// override these at startup; see the flags package.
type Modes struct {
	TwitterUseLibrary   bool `toml:"twitter_use_library"`
	RedditUseLibrary    bool `toml:"reddit_use_library"`
	InstagramUseLibrary bool `toml:"instagram_use_library"`
	YouTubeUseLibrary   bool `toml:"youtube_use_library"`
	FallbackToProcess   bool `toml:"fallback_to_process"`
}

// Downloader contains tool-level download knobs shared by both execution
// paths. UserAgent is required.
type Downloader struct {
	Retries   int    `toml:"retries"`
	Timeout   int    `toml:"timeout"`
	Verify    bool   `toml:"verify"`
	UserAgent string `toml:"user_agent"`
}

// Queue contains orchestration limits and per-call timeouts.
type Queue struct {
	MaxConcurrency       int `toml:"max_concurrency"`
	WorkerPoolSize       int `toml:"worker_pool_size"`
	LibraryTimeout       int `toml:"library_timeout"`
	ProcessTimeout       int `toml:"process_timeout"`
	OutputCaptureLimitKB int `toml:"output_capture_limit_kb"`
}

// Tools names the external binaries used in process mode.
type Tools struct {
	YtdlpBinary     string `toml:"ytdlp_binary"`
	GalleryDLBinary string `toml:"gallerydl_binary"`
}

// Notifications contains configuration for Redis completion events.
type Notifications struct {
	Enabled  bool   `toml:"enabled"`
	RedisURL string `toml:"redis_url"`
	Channel  string `toml:"channel"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fetchd.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Modes: per-platform library/process selection and fallback policy
//   - Extractor: free-form per-platform extractor options, merged with
//     per-request overrides by the configmerge package
//   - Downloader: retries/timeout/verify/user agent passed to the tools
//   - Queue: concurrency bounds and per-call timeouts
//   - Tools: external binary names for process mode
//   - Notifications: optional Redis pub/sub completion events
//   - Logging: log format and level
type Config struct {
	Paths         Paths                     `toml:"paths"`
	Modes         Modes                     `toml:"modes"`
	Extractor     map[string]map[string]any `toml:"extractor"`
	Downloader    Downloader                `toml:"downloader"`
	Queue         Queue                     `toml:"queue"`
	Tools         Tools                     `toml:"tools"`
	Notifications Notifications             `toml:"notifications"`
	Logging       Logging                   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fetchd/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fetchd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ExtractorOptions returns a copy of the file-level extractor options for a
// platform; nil when the section is absent.
func (c *Config) ExtractorOptions(name string) map[string]any {
	section, ok := c.Extractor[name]
	if !ok {
		return nil
	}
	cp := make(map[string]any, len(section))
	for key, value := range section {
		cp[key] = value
	}
	return cp
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
