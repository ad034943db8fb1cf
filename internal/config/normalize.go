package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return err
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Downloader.UserAgent = strings.TrimSpace(c.Downloader.UserAgent)
	c.Tools.YtdlpBinary = strings.TrimSpace(c.Tools.YtdlpBinary)
	c.Tools.GalleryDLBinary = strings.TrimSpace(c.Tools.GalleryDLBinary)
	c.Notifications.RedisURL = strings.TrimSpace(c.Notifications.RedisURL)
	c.Notifications.Channel = strings.TrimSpace(c.Notifications.Channel)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Extractor == nil {
		c.Extractor = map[string]map[string]any{}
	}
	lowered := make(map[string]map[string]any, len(c.Extractor))
	for name, section := range c.Extractor {
		lowered[strings.ToLower(strings.TrimSpace(name))] = section
	}
	c.Extractor = lowered

	return nil
}
