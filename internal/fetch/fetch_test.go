package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"milkcrate/internal/bandcamp"
	"milkcrate/internal/fetch"
)

func newDownloader(t *testing.T, dir string, client *http.Client) *fetch.Downloader {
	t.Helper()

	downloader, err := fetch.New(fetch.Options{
		Directory:  dir,
		HTTPClient: client,
	})
	if err != nil {
		t.Fatalf("fetch.New: %v", err)
	}
	return downloader
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestSaveUsesContentDispositionName(t *testing.T) {
	payload := strings.Repeat("flac bytes ", 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Night Shift - Dustbowl.zip"`)
		if _, err := w.Write([]byte(payload)); err != nil {
			t.Errorf("write payload: %v", err)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := newDownloader(t, dir, server.Client())

	result, err := downloader.Save(context.Background(), server.URL, nil, bandcamp.FormatFLAC)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := filepath.Join(dir, "Night Shift - Dustbowl.zip")
	if result.Path != want {
		t.Fatalf("path = %q, want %q", result.Path, want)
	}
	if result.Bytes != int64(len(payload)) {
		t.Fatalf("bytes = %d, want %d", result.Bytes, len(payload))
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != payload {
		t.Fatal("saved payload does not match response body")
	}
	if names := listFiles(t, dir); len(names) != 1 {
		t.Fatalf("download dir holds %v, want only the finished file", names)
	}
}

func TestSaveFallsBackToReleaseMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("archive")); err != nil {
			t.Errorf("write payload: %v", err)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := newDownloader(t, dir, server.Client())

	album := &bandcamp.DigitalItem{Title: "Dustbowl", Artist: "Night Shift", DownloadType: "a"}
	result, err := downloader.Save(context.Background(), server.URL, album, bandcamp.FormatFLAC)
	if err != nil {
		t.Fatalf("Save album: %v", err)
	}
	if got := filepath.Base(result.Path); got != "Night Shift - Dustbowl.zip" {
		t.Fatalf("album file name = %q, want zip archive name", got)
	}

	track := &bandcamp.DigitalItem{Title: "Dust Devil", Artist: "Night Shift", DownloadType: "t"}
	result, err = downloader.Save(context.Background(), server.URL, track, bandcamp.FormatFLAC)
	if err != nil {
		t.Fatalf("Save track: %v", err)
	}
	if got := filepath.Base(result.Path); got != "Night Shift - Dust Devil.flac" {
		t.Fatalf("track file name = %q, want encoding extension", got)
	}
}

func TestSaveSanitizesHostileFileName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../../outside/escape.zip"`)
		if _, err := w.Write([]byte("payload")); err != nil {
			t.Errorf("write payload: %v", err)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := newDownloader(t, dir, server.Client())

	result, err := downloader.Save(context.Background(), server.URL, nil, bandcamp.FormatMP3320)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(result.Path) != dir {
		t.Fatalf("saved outside download dir: %q", result.Path)
	}
	if strings.ContainsAny(filepath.Base(result.Path), `/\`) {
		t.Fatalf("file name %q still carries separators", filepath.Base(result.Path))
	}
}

func TestSaveShortBodyLeavesNothingBehind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Header().Set("Content-Disposition", `attachment; filename="truncated.zip"`)
		if _, err := w.Write([]byte("only a fragment")); err != nil {
			t.Errorf("write payload: %v", err)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := newDownloader(t, dir, server.Client())

	if _, err := downloader.Save(context.Background(), server.URL, nil, bandcamp.FormatFLAC); err == nil {
		t.Fatal("expected truncated download to fail")
	}
	if names := listFiles(t, dir); len(names) != 0 {
		t.Fatalf("download dir holds %v after failed transfer, want empty", names)
	}
}

func TestSaveSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "link expired", http.StatusGone)
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := newDownloader(t, dir, server.Client())

	_, err := downloader.Save(context.Background(), server.URL, nil, bandcamp.FormatFLAC)
	if err == nil {
		t.Fatal("expected error for 410 response")
	}
	if !strings.Contains(err.Error(), "410") {
		t.Fatalf("error %q does not carry the response status", err)
	}
	if names := listFiles(t, dir); len(names) != 0 {
		t.Fatalf("download dir holds %v after rejected request, want empty", names)
	}
}
