package downloadcache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"milkcrate/internal/logging"
)

// Release is one cached collection item.
type Release struct {
	ItemID string
	Title  string
	Year   int
	Artist string
}

// ParseError reports a cache line that does not match the cache grammar.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("downloadcache: line %d does not match cache grammar: %q", e.Line, e.Text)
}

// linePattern mirrors the serialized form. The title class stops at the
// first unescaped quote.
var linePattern = regexp.MustCompile(`^(\w+)\|\s*"((?:[^"\\]|\\.)*)" \((\d+)\) by (.*)$`)

var itemIDPattern = regexp.MustCompile(`^\w+$`)

// Cache provides thread-safe access to the download cache file.
type Cache struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]Release
	order   []string
}

// New loads the cache at path, starting empty when the file does not exist
// yet. Unparseable lines surface as a ParseError rather than being dropped.
func New(path string, logger *slog.Logger) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("downloadcache: path is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	c := &Cache{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "downloadcache"),
		entries: make(map[string]Release),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup returns the cached release for the given item id if found.
func (c *Cache) Lookup(itemID string) (Release, bool) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return Release{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	release, found := c.entries[itemID]
	return release, found
}

// Store adds or updates a release and persists the cache.
func (c *Cache) Store(release Release) error {
	release.ItemID = strings.TrimSpace(release.ItemID)
	if !itemIDPattern.MatchString(release.ItemID) {
		return fmt.Errorf("downloadcache: item id %q is not cacheable", release.ItemID)
	}
	if strings.ContainsRune(release.Title, '\n') || strings.ContainsRune(release.Artist, '\n') {
		return errors.New("downloadcache: title and artist must be single-line")
	}
	if release.Year < 0 {
		return fmt.Errorf("downloadcache: year %d is not cacheable", release.Year)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[release.ItemID]; !exists {
		c.order = append(c.order, release.ItemID)
	}
	c.entries[release.ItemID] = release

	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("cached release",
		logging.String(logging.FieldItemID, release.ItemID),
		logging.String("title", release.Title),
		logging.String("artist", release.Artist))

	return nil
}

// Remove deletes a release by item id and persists the change.
func (c *Cache) Remove(itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("downloadcache: item id cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[itemID]; !exists {
		return fmt.Errorf("downloadcache: item id %q not found in cache", itemID)
	}
	delete(c.entries, itemID)
	for i, id := range c.order {
		if id == itemID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("removed release from cache", logging.String(logging.FieldItemID, itemID))
	return nil
}

// List returns all releases in file order.
func (c *Cache) List() []Release {
	c.mu.RLock()
	defer c.mu.RUnlock()

	releases := make([]Release, 0, len(c.order))
	for _, id := range c.order {
		releases = append(releases, c.entries[id])
	}
	return releases
}

// Clear removes all releases and persists the empty cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Release)
	c.order = nil

	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("cleared download cache")
	return nil
}

// Count returns the number of cached releases.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Path returns the backing file path.
func (c *Cache) Path() string {
	return c.path
}

// load reads the cache file into memory, keeping file order.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("downloadcache: read cache file: %w", err)
	}

	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		release, ok := parseLine(line)
		if !ok {
			return &ParseError{Line: i + 1, Text: line}
		}
		if _, exists := c.entries[release.ItemID]; !exists {
			c.order = append(c.order, release.ItemID)
		}
		c.entries[release.ItemID] = release
	}

	c.logger.Debug("loaded download cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))

	return nil
}

// save writes the cache to disk atomically.
func (c *Cache) save() error {
	var b strings.Builder
	for _, id := range c.order {
		b.WriteString(formatLine(c.entries[id]))
		b.WriteByte('\n')
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func parseLine(line string) (Release, bool) {
	match := linePattern.FindStringSubmatch(line)
	if match == nil {
		return Release{}, false
	}
	year, err := strconv.Atoi(match[3])
	if err != nil {
		return Release{}, false
	}
	return Release{
		ItemID: match[1],
		Title:  unescapeTitle(match[2]),
		Year:   year,
		Artist: match[4],
	}, true
}

func formatLine(release Release) string {
	return fmt.Sprintf(`%s| "%s" (%d) by %s`,
		release.ItemID, escapeTitle(release.Title), release.Year, release.Artist)
}

func escapeTitle(title string) string {
	return strings.ReplaceAll(title, `"`, `\"`)
}

func unescapeTitle(title string) string {
	return strings.ReplaceAll(title, `\"`, `"`)
}
