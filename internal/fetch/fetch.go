package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/text/unicode/norm"

	"milkcrate/internal/bandcamp"
	"milkcrate/internal/logging"
)

// Doer issues a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure a Downloader.
type Options struct {
	// Directory receives completed downloads. Required.
	Directory string
	// HTTPClient overrides the default client. The default carries no
	// global timeout; cancellation comes from the request context.
	HTTPClient Doer
	// Logger receives download telemetry. Defaults to a no-op logger.
	Logger *slog.Logger
	// Progress renders a terminal progress bar while streaming.
	Progress bool
}

// Downloader streams release archives into a target directory.
type Downloader struct {
	dir      string
	http     Doer
	logger   *slog.Logger
	progress bool
}

// Result describes one completed download.
type Result struct {
	// Path is the final location of the saved file.
	Path string
	// Bytes is the number of payload bytes written.
	Bytes int64
}

// New validates opts and returns a Downloader.
func New(opts Options) (*Downloader, error) {
	dir := strings.TrimSpace(opts.Directory)
	if dir == "" {
		return nil, errors.New("fetch: download directory is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		dir:      dir,
		http:     client,
		logger:   logging.NewComponentLogger(logger, "fetch"),
		progress: opts.Progress,
	}, nil
}

// Save streams downloadURL into the download directory and returns the final
// path. The payload lands in a .part file first and is renamed into place only
// after the full body arrives; a failed transfer leaves nothing behind under
// the final name.
func (d *Downloader) Save(ctx context.Context, downloadURL string, item *bandcamp.DigitalItem, format bandcamp.Format) (*Result, error) {
	if d == nil {
		return nil, errors.New("fetch: downloader is not initialized")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build download request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch: download failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	name := fileNameFromHeader(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = fallbackFileName(item, format)
	}
	name = sanitizeFileName(name)

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("fetch: create download directory: %w", err)
	}
	target := filepath.Join(d.dir, name)
	partPath := target + ".part"
	file, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("fetch: create partial file: %w", err)
	}

	var reader io.Reader = resp.Body
	var bar *pb.ProgressBar
	if d.progress && resp.ContentLength > 0 {
		bar = pb.Full.Start64(resp.ContentLength)
		bar.Set(pb.Bytes, true)
		reader = bar.NewProxyReader(resp.Body)
	}

	written, err := io.Copy(file, reader)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		file.Close()
		os.Remove(partPath)
		return nil, fmt.Errorf("fetch: stream %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("fetch: close partial file: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(partPath)
		return nil, fmt.Errorf("fetch: short download for %s: got %d bytes, want %d", name, written, resp.ContentLength)
	}
	if err := os.Rename(partPath, target); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("fetch: finalize download: %w", err)
	}

	d.logger.Info("download saved",
		logging.String("path", target),
		logging.Int64("bytes", written))
	return &Result{Path: target, Bytes: written}, nil
}

// fileNameFromHeader extracts the filename parameter from a
// Content-Disposition header, or returns "" when the header is absent or
// unparseable.
func fileNameFromHeader(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// fallbackFileName builds "<artist> - <title>.<ext>" for responses that carry
// no usable Content-Disposition. Full releases arrive as zip archives, single
// tracks as bare audio files in the requested encoding.
func fallbackFileName(item *bandcamp.DigitalItem, format bandcamp.Format) string {
	artist := "unknown artist"
	title := "release"
	isAlbum := false
	if item != nil {
		if strings.TrimSpace(item.Artist) != "" {
			artist = item.Artist
		}
		if strings.TrimSpace(item.Title) != "" {
			title = item.Title
		}
		isAlbum = item.DownloadType == "a"
	}
	ext := "zip"
	if !isAlbum {
		ext = formatExtension(format)
	}
	return fmt.Sprintf("%s - %s.%s", artist, title, ext)
}

// formatExtension maps an encoding to the file extension its single-track
// downloads use.
func formatExtension(format bandcamp.Format) string {
	switch format {
	case bandcamp.FormatMP3V0, bandcamp.FormatMP3320:
		return "mp3"
	case bandcamp.FormatFLAC:
		return "flac"
	case bandcamp.FormatAACHi, bandcamp.FormatALAC:
		return "m4a"
	case bandcamp.FormatVorbis:
		return "ogg"
	case bandcamp.FormatWAV:
		return "wav"
	case bandcamp.FormatAIFF:
		return "aiff"
	default:
		return "bin"
	}
}

// sanitizeFileName keeps unicode titles intact but strips path separators and
// control characters so a server-supplied name can never escape the download
// directory. Names are NFC-normalized so the same release compares equal
// across filesystems with different normalization habits.
func sanitizeFileName(name string) string {
	name = norm.NFC.String(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "download"
	}
	return cleaned
}
