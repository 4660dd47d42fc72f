package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBandcamp(); err != nil {
		return err
	}
	c.normalizeTransport()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBandcamp() error {
	c.Bandcamp.BaseURL = strings.TrimRight(strings.TrimSpace(c.Bandcamp.BaseURL), "/")
	if c.Bandcamp.BaseURL == "" {
		c.Bandcamp.BaseURL = defaultBaseURL
	}

	c.Bandcamp.CookiesPath = strings.TrimSpace(c.Bandcamp.CookiesPath)
	if value, ok := os.LookupEnv("MILKCRATE_COOKIES"); ok && strings.TrimSpace(value) != "" {
		c.Bandcamp.CookiesPath = strings.TrimSpace(value)
	}
	if c.Bandcamp.CookiesPath == "" {
		c.Bandcamp.CookiesPath = defaultCookiesPath
	}
	var err error
	if c.Bandcamp.CookiesPath, err = expandPath(c.Bandcamp.CookiesPath); err != nil {
		return fmt.Errorf("bandcamp.cookies_path: %w", err)
	}

	c.Bandcamp.CookiesFormat = strings.ToLower(strings.TrimSpace(c.Bandcamp.CookiesFormat))
	if c.Bandcamp.CookiesFormat == "" {
		c.Bandcamp.CookiesFormat = defaultCookiesFormat
	}

	c.Bandcamp.Encoding = strings.ToLower(strings.TrimSpace(c.Bandcamp.Encoding))
	if c.Bandcamp.Encoding == "" {
		c.Bandcamp.Encoding = defaultEncoding
	}
	return nil
}

func (c *Config) normalizeTransport() {
	if c.Transport.RateRequests <= 0 {
		c.Transport.RateRequests = defaultRateRequests
	}
	if c.Transport.RateWindowSeconds <= 0 {
		c.Transport.RateWindowSeconds = defaultRateWindowSeconds
	}
	if c.Transport.RetryMaxAttempts <= 0 {
		c.Transport.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.Transport.RequestTimeoutSeconds <= 0 {
		c.Transport.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

func (c *Config) normalizeSync() {
	// Concurrency 0 is meaningful: fan out one worker per item.
	if c.Sync.Concurrency < 0 {
		c.Sync.Concurrency = 0
	}
	if c.Sync.PageLimit <= 0 {
		c.Sync.PageLimit = defaultPageLimit
	}
	if c.Sync.StatPollIntervalSeconds <= 0 {
		c.Sync.StatPollIntervalSeconds = defaultStatPollInterval
	}
	if c.Sync.StatPollLimit <= 0 {
		c.Sync.StatPollLimit = defaultStatPollLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
