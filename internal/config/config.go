package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	DownloadDir string `toml:"download_dir"`
	LogDir      string `toml:"log_dir"`
}

// Bandcamp contains configuration for talking to the collection platform.
type Bandcamp struct {
	BaseURL       string `toml:"base_url"`
	CookiesPath   string `toml:"cookies_path"`
	CookiesFormat string `toml:"cookies_format"`
	Encoding      string `toml:"encoding"`
	IncludeHidden bool   `toml:"include_hidden"`
}

// Transport contains rate limiting and retry configuration shared by every
// platform request.
type Transport struct {
	RateRequests          int `toml:"rate_requests"`
	RateWindowSeconds     int `toml:"rate_window_seconds"`
	RetryMaxAttempts      int `toml:"retry_max_attempts"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// Sync contains configuration for the synchronization run.
type Sync struct {
	Concurrency             int  `toml:"concurrency"`
	PageLimit               int  `toml:"page_limit"`
	StatPollIntervalSeconds int  `toml:"stat_poll_interval_seconds"`
	StatPollLimit           int  `toml:"stat_poll_limit"`
	Download                bool `toml:"download"`
	Journal                 bool `toml:"journal"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for milkcrate.
//
// Configuration sections by subsystem:
//   - Paths: state, download, and log directories
//   - Bandcamp: credentials, requested encoding, hidden-item scanning
//   - Transport: request rate window and 429 retry budget
//   - Sync: concurrency, pagination and polling bounds, downloads, journal
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Bandcamp  Bandcamp  `toml:"bandcamp"`
	Transport Transport `toml:"transport"`
	Sync      Sync      `toml:"sync"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/milkcrate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	defaultPath, err := expandPath("~/.config/milkcrate/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("milkcrate.toml")
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

// EnsureDirectories creates required directories for a sync run.
// DownloadDir is created on a best-effort basis so cache-only commands still
// work when external storage is unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.DownloadDir) != "" {
		_ = os.MkdirAll(c.Paths.DownloadDir, 0o755)
	}
	return nil
}

// CachePath returns the location of the download cache file.
func (c *Config) CachePath() string {
	return filepath.Join(c.Paths.StateDir, "collection.cache")
}

// JournalPath returns the location of the sync history database.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the location of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "milkcrate.lock")
}

// RateWindow returns the transport rate window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Transport.RateWindowSeconds) * time.Second
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Transport.RequestTimeoutSeconds) * time.Second
}

// StatPollInterval returns the delay between download resolution polls.
func (c *Config) StatPollInterval() time.Duration {
	return time.Duration(c.Sync.StatPollIntervalSeconds) * time.Second
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

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
