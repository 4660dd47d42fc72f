package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"milkcrate/internal/config"
	"milkcrate/internal/downloadcache"
	"milkcrate/internal/journal"
	"milkcrate/internal/testsupport"
)

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
download_dir = %q
log_dir = %q

[bandcamp]
base_url = %q
cookies_path = %q
encoding = %q
include_hidden = %v

[sync]
concurrency = %d
`,
		cfg.Paths.StateDir,
		cfg.Paths.DownloadDir,
		cfg.Paths.LogDir,
		cfg.Bandcamp.BaseURL,
		cfg.Bandcamp.CookiesPath,
		cfg.Bandcamp.Encoding,
		cfg.Bandcamp.IncludeHidden,
		cfg.Sync.Concurrency,
	)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestFormatsCommandListsEncodings(t *testing.T) {
	out, _, err := runCLI(t, "", "formats")
	if err != nil {
		t.Fatalf("formats: %v", err)
	}
	requireContains(t, out, "flac")
	requireContains(t, out, "FLAC lossless")
	requireContains(t, out, "mp3-v0")
}

func TestConfigInitWritesSampleFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	requireContains(t, err.Error(), "already exists")

	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowReflectsConfigFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEncoding("vorbis"), testsupport.WithHiddenItems())
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, configPath)
	requireContains(t, out, "vorbis")
	requireContains(t, out, "Hidden shelf:   yes")
	requireContains(t, out, cfg.Paths.DownloadDir)
}

func TestConfigShowFallsBackToDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	out, _, err := runCLI(t, missing, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "not present, defaults in effect")
	requireContains(t, out, "flac")
}

func TestCacheCommandsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, configPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "Cache is empty")

	out, _, err = runCLI(t, configPath, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	requireContains(t, out, cfg.CachePath())

	cache, err := downloadcache.New(cfg.CachePath(), nil)
	if err != nil {
		t.Fatalf("downloadcache.New: %v", err)
	}
	seed := []downloadcache.Release{
		{ItemID: "p210491041", Title: "Dustbowl", Year: 2020, Artist: "Night Shift"},
		{ItemID: "p180374364", Title: "Hologram", Year: 2019, Artist: "Vector North"},
	}
	for _, release := range seed {
		if err := cache.Store(release); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
	}

	out, _, err = runCLI(t, configPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list after seed: %v", err)
	}
	requireContains(t, out, "Dustbowl")
	requireContains(t, out, "Vector North")
	requireContains(t, out, "2 cached releases")

	out, _, err = runCLI(t, configPath, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Cleared 2 cached releases")

	out, _, err = runCLI(t, configPath, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear on empty: %v", err)
	}
	requireContains(t, out, "Cache is already empty")
}

func TestHistoryCommandsShowRecordedRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No sync runs recorded")

	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	ctx := context.Background()
	run, err := store.BeginRun(ctx, "flac", false)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	failure := journal.Failure{
		RunID:   run.RunID,
		ItemID:  "p310491041",
		Title:   "Dustbowl",
		Artist:  "Night Shift",
		Stage:   journal.StageResolve,
		Message: "no flac download offered",
	}
	if err := store.RecordFailure(ctx, failure); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	totals := journal.Totals{Items: 3, Resolved: 1, NewlyCached: 1, Skipped: 1, Failed: 1}
	if err := store.FinishRun(ctx, run.RunID, totals, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	out, _, err = runCLI(t, configPath, "history")
	if err != nil {
		t.Fatalf("history after run: %v", err)
	}
	requireContains(t, out, run.RunID[:8])
	requireContains(t, out, "completed")

	out, _, err = runCLI(t, configPath, "history", run.RunID[:8])
	if err != nil {
		t.Fatalf("history by prefix: %v", err)
	}
	requireContains(t, out, run.RunID)
	requireContains(t, out, "no flac download offered")

	_, _, err = runCLI(t, configPath, "history", "ffffffff")
	if err == nil {
		t.Fatal("expected unknown run reference to fail")
	}
	requireContains(t, err.Error(), "no sync run matches")

	out, _, err = runCLI(t, configPath, "history", "clear")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Sync history cleared")

	out, _, err = runCLI(t, configPath, "history")
	if err != nil {
		t.Fatalf("history after clear: %v", err)
	}
	requireContains(t, out, "No sync runs recorded")
}

func TestSyncFailsWithoutCookieExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, configPath, "sync")
	if err == nil {
		t.Fatal("expected sync without a cookie export to fail")
	}
	requireContains(t, err.Error(), "read cookies")
}

func TestSyncDetectsSignedOutSession(t *testing.T) {
	var sawCookie atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Cookie"), "identity=test-session") {
			sawCookie.Store(true)
		}
		fmt.Fprint(w, `{"fan_id": 0, "collection_summary": {}}`)
	}))
	defer server.Close()

	serverURL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	testsupport.WriteCookieExport(t, cfg.Bandcamp.CookiesPath, serverURL.Hostname())
	configPath := writeTestConfig(t, cfg)

	_, _, err = runCLI(t, configPath, "sync")
	if err == nil || !strings.Contains(err.Error(), "signed out") {
		t.Fatalf("sync error = %v, want signed-out session error", err)
	}
	if !sawCookie.Load() {
		t.Fatal("session cookie never reached the platform")
	}
}
