package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBandcamp(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBandcamp() error {
	if !strings.HasPrefix(c.Bandcamp.BaseURL, "http://") && !strings.HasPrefix(c.Bandcamp.BaseURL, "https://") {
		return fmt.Errorf("bandcamp.base_url must be an http(s) URL, got %q", c.Bandcamp.BaseURL)
	}
	if strings.TrimSpace(c.Bandcamp.CookiesPath) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/milkcrate/config.toml"
		}
		return fmt.Errorf("bandcamp.cookies_path is required. Set MILKCRATE_COOKIES env var or edit %s (create with 'milkcrate config init')", defaultPath)
	}
	switch c.Bandcamp.CookiesFormat {
	case "auto", "json", "netscape":
	default:
		return fmt.Errorf("bandcamp.cookies_format must be auto, json, or netscape, got %q", c.Bandcamp.CookiesFormat)
	}
	if c.Bandcamp.Encoding == "" {
		return errors.New("bandcamp.encoding must be set")
	}
	return nil
}

func (c *Config) validateTransport() error {
	return ensurePositiveMap(map[string]int{
		"transport.rate_requests":           c.Transport.RateRequests,
		"transport.rate_window_seconds":     c.Transport.RateWindowSeconds,
		"transport.retry_max_attempts":      c.Transport.RetryMaxAttempts,
		"transport.request_timeout_seconds": c.Transport.RequestTimeoutSeconds,
	})
}

func (c *Config) validateSync() error {
	if c.Sync.Concurrency < 0 {
		return errors.New("sync.concurrency must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"sync.page_limit":                 c.Sync.PageLimit,
		"sync.stat_poll_interval_seconds": c.Sync.StatPollIntervalSeconds,
		"sync.stat_poll_limit":            c.Sync.StatPollLimit,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
