package testsupport

import (
	"path/filepath"
	"testing"

	"milkcrate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Bandcamp.CookiesPath = filepath.Join(base, "cookies.json")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBaseURL points the client at a test server instead of the public site.
func WithBaseURL(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Bandcamp.BaseURL = baseURL
	}
}

// WithEncoding overrides the requested download encoding.
func WithEncoding(encoding string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Bandcamp.Encoding = encoding
	}
}

// WithHiddenItems enables walking the hidden shelf.
func WithHiddenItems() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Bandcamp.IncludeHidden = true
	}
}

// WithConcurrency overrides the sync worker count.
func WithConcurrency(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.Concurrency = workers
	}
}
