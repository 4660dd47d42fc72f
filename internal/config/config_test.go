package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"milkcrate/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndHonoursEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MILKCRATE_COOKIES", "~/exported-cookies.json")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "milkcrate")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempHome, "Music", "bandcamp") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Bandcamp.BaseURL != "https://bandcamp.com" {
		t.Fatalf("unexpected base url: %q", cfg.Bandcamp.BaseURL)
	}
	if cfg.Bandcamp.Encoding != "flac" {
		t.Fatalf("unexpected default encoding: %q", cfg.Bandcamp.Encoding)
	}
	if cfg.Bandcamp.IncludeHidden {
		t.Fatal("expected hidden item scanning disabled by default")
	}
	if cfg.Bandcamp.CookiesPath != filepath.Join(tempHome, "exported-cookies.json") {
		t.Fatalf("expected cookies path from env, got %q", cfg.Bandcamp.CookiesPath)
	}
	if cfg.Transport.RateRequests != 10 || cfg.Transport.RateWindowSeconds != 10 {
		t.Fatalf("unexpected rate window defaults: %d/%ds", cfg.Transport.RateRequests, cfg.Transport.RateWindowSeconds)
	}
	if cfg.Sync.Concurrency != 8 {
		t.Fatalf("unexpected concurrency default: %d", cfg.Sync.Concurrency)
	}
	if !cfg.Sync.Download || !cfg.Sync.Journal {
		t.Fatal("expected download and journal enabled by default")
	}
	if cfg.CachePath() != filepath.Join(wantState, "collection.cache") {
		t.Fatalf("unexpected cache path: %q", cfg.CachePath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "milkcrate.toml")

	type payload struct {
		Bandcamp struct {
			BaseURL  string `toml:"base_url"`
			Encoding string `toml:"encoding"`
		} `toml:"bandcamp"`
		Transport struct {
			RateRequests      int `toml:"rate_requests"`
			RateWindowSeconds int `toml:"rate_window_seconds"`
		} `toml:"transport"`
		Sync struct {
			Concurrency int `toml:"concurrency"`
		} `toml:"sync"`
	}
	custom := payload{}
	custom.Bandcamp.BaseURL = "https://example.com/"
	custom.Bandcamp.Encoding = "MP3-320"
	custom.Transport.RateRequests = 3
	custom.Transport.RateWindowSeconds = 1
	custom.Sync.Concurrency = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Bandcamp.BaseURL != "https://example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Bandcamp.BaseURL)
	}
	if cfg.Bandcamp.Encoding != "mp3-320" {
		t.Fatalf("expected encoding lowercased, got %q", cfg.Bandcamp.Encoding)
	}
	if cfg.Transport.RateRequests != 3 {
		t.Fatalf("expected rate override, got %d", cfg.Transport.RateRequests)
	}
	if cfg.Sync.Concurrency != 2 {
		t.Fatalf("expected concurrency override, got %d", cfg.Sync.Concurrency)
	}
	if cfg.Sync.PageLimit != config.Default().Sync.PageLimit {
		t.Fatalf("expected default page limit, got %d", cfg.Sync.PageLimit)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "cookies_path") {
		t.Fatalf("sample config missing cookies_path: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "milkcrate") {
		t.Fatalf("expected state dir to contain milkcrate, got %q", cfg.Paths.StateDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Bandcamp.BaseURL = "ftp://bandcamp.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http base url")
	}

	cfg = config.Default()
	cfg.Bandcamp.CookiesFormat = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown cookies format")
	}

	cfg = config.Default()
	cfg.Transport.RateRequests = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive rate")
	}

	cfg = config.Default()
	cfg.Sync.PageLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive page limit")
	}

	cfg = config.Default()
	cfg.Sync.Concurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative concurrency")
	}
}
