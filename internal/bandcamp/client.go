package bandcamp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"milkcrate/internal/logging"
	"milkcrate/internal/pagedata"
	"milkcrate/internal/transport"
)

const (
	defaultBaseURL      = "https://bandcamp.com"
	defaultHTTPTimeout  = 60 * time.Second
	defaultPageLimit    = 1000
	defaultPollInterval = 5 * time.Second
	defaultPollLimit    = 120
)

// Doer issues HTTP requests. Both *http.Client and *transport.Client satisfy
// it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the fan API client configuration. The zero value selects
// the public site, a plain HTTP client, and the default paging and polling
// bounds.
type Config struct {
	BaseURL      string
	HTTPClient   Doer
	Logger       *slog.Logger
	PageLimit    int
	PollInterval time.Duration
	PollLimit    int

	// Now, Rand, and Sleep default to the real clock, a process-wide random
	// source, and a context-aware sleep. Tests override them.
	Now   func() time.Time
	Rand  func() int64
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client wraps the Bandcamp fan API.
type Client struct {
	baseURL      *url.URL
	http         Doer
	logger       *slog.Logger
	pageLimit    int
	pollInterval time.Duration
	pollLimit    int
	now          func() time.Time
	rand         func() int64
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("bandcamp: parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pollLimit := cfg.PollLimit
	if pollLimit <= 0 {
		pollLimit = defaultPollLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	random := cfg.Rand
	if random == nil {
		random = rand.Int64
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = transport.SleepWithContext
	}
	return &Client{
		baseURL:      baseURL,
		http:         httpClient,
		logger:       logging.NewComponentLogger(logger, "bandcamp"),
		pageLimit:    pageLimit,
		pollInterval: pollInterval,
		pollLimit:    pollLimit,
		now:          now,
		rand:         random,
		sleep:        sleep,
	}, nil
}

// CollectionSummary identifies the fan behind the session cookies and
// returns the lookup entries used to seed collection pagination.
func (c *Client) CollectionSummary(ctx context.Context) (*Summary, error) {
	if c == nil {
		return nil, errors.New("bandcamp: client is nil")
	}
	endpoint := c.baseURL.JoinPath("api", "fan", "2", "collection_summary")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("bandcamp: build summary request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bandcamp: summary request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bandcamp: collection summary failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("bandcamp: decode collection summary: %w", err)
	}
	if payload.FanID == 0 {
		return nil, errors.New("bandcamp: collection summary carries no fan id; session cookies look signed out")
	}

	summary := &Summary{
		FanID:    payload.FanID,
		Username: payload.CollectionSummary.Username,
		URL:      payload.CollectionSummary.URL,
	}
	for _, entry := range payload.CollectionSummary.TralbumLookup {
		summary.Items = append(summary.Items, SummaryItem{
			ItemType:  entry.ItemType,
			ItemID:    entry.ItemID,
			BandID:    entry.BandID,
			Purchased: entry.Purchased,
		})
	}
	return summary, nil
}

// AllReleases walks the fan's collection pages and returns download page
// URLs keyed by sale item id. When includeHidden is set the hidden shelf is
// walked as well, seeded by its own token.
func (c *Client) AllReleases(ctx context.Context, summary *Summary, includeHidden bool) (map[string]string, error) {
	if c == nil {
		return nil, errors.New("bandcamp: client is nil")
	}
	if summary == nil {
		return nil, errors.New("bandcamp: summary is nil")
	}

	urls := make(map[string]string)
	if len(summary.Items) == 0 {
		c.logger.Debug("collection lookup is empty, nothing to page")
		return urls, nil
	}

	seed := summary.Items[0]
	if err := c.collectPages(ctx, summary.FanID, c.olderThanToken(seed), "collection_items", urls); err != nil {
		return nil, err
	}
	if includeHidden {
		if err := c.collectPages(ctx, summary.FanID, c.olderThanToken(seed), "hidden_items", urls); err != nil {
			return nil, err
		}
	}
	return urls, nil
}

// collectPages follows the older-than-token chain for one collection shelf,
// merging every page's redownload URLs into urls.
func (c *Client) collectPages(ctx context.Context, fanID int64, token, collection string, urls map[string]string) error {
	endpoint := c.baseURL.JoinPath("api", "fancollection", "1", collection)
	for page := 1; page <= c.pageLimit; page++ {
		items, err := c.fetchCollectionPage(ctx, endpoint, fanID, token)
		if err != nil {
			return err
		}
		for id, pageURL := range items.RedownloadURLs {
			urls[id] = pageURL
		}
		c.logger.Debug("collection page fetched",
			logging.String("collection", collection),
			logging.Int("page", page),
			logging.Int("page_urls", len(items.RedownloadURLs)),
			logging.Bool("more", items.MoreAvailable))
		if !items.MoreAvailable {
			return nil
		}
		token = items.LastToken
	}
	return fmt.Errorf("bandcamp: %s pagination did not finish within %d pages", collection, c.pageLimit)
}

func (c *Client) fetchCollectionPage(ctx context.Context, endpoint *url.URL, fanID int64, token string) (collectionPage, error) {
	payload, err := json.Marshal(collectionRequest{FanID: fanID, OlderThanToken: token})
	if err != nil {
		return collectionPage{}, fmt.Errorf("bandcamp: encode collection request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return collectionPage{}, fmt.Errorf("bandcamp: build collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return collectionPage{}, fmt.Errorf("bandcamp: collection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return collectionPage{}, fmt.Errorf("bandcamp: collection page failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var page collectionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return collectionPage{}, fmt.Errorf("bandcamp: decode collection page: %w", err)
	}
	return page, nil
}

// ItemDownloads fetches a download page and decodes the digital item embedded
// in it. Items without digital content return nil without error.
func (c *Client) ItemDownloads(ctx context.Context, itemURL string) (*DigitalItem, error) {
	if c == nil {
		return nil, errors.New("bandcamp: client is nil")
	}
	body, err := c.fetchPage(ctx, itemURL)
	if err != nil {
		return nil, err
	}
	var page downloadPage
	if err := pagedata.Decode(body, &page); err != nil {
		return nil, fmt.Errorf("bandcamp: item page %s: %w", itemURL, err)
	}
	if len(page.DigitalItems) == 0 {
		return nil, nil
	}
	item := page.DigitalItems[0]
	return &item, nil
}

// ResolveDownload turns a digital item's unqualified link for the requested
// encoding into a fetchable URL. The statdownload endpoint answers "err"
// while the platform regenerates a stale link; each such answer names the
// next URL to poll, which is retried after the poll interval until the poll
// budget runs out.
func (c *Client) ResolveDownload(ctx context.Context, item *DigitalItem, format Format) (string, error) {
	if c == nil {
		return "", errors.New("bandcamp: client is nil")
	}
	if item == nil {
		return "", errors.New("bandcamp: digital item is nil")
	}
	if len(item.Downloads) == 0 {
		return "", fmt.Errorf("%q by %s: %w", item.Title, item.Artist, ErrNoDownloads)
	}
	option, ok := item.Downloads[format]
	if !ok {
		return "", fmt.Errorf("%q has no %s download: %w", item.Title, format, ErrEncodingUnavailable)
	}

	statURL := statDownloadURL(option.URL, c.rand())
	for attempt := 1; attempt <= c.pollLimit; attempt++ {
		body, err := c.fetchPage(ctx, statURL)
		if err != nil {
			return "", err
		}
		payload, err := parseStatResult(body)
		if err != nil {
			return "", err
		}
		if payload.Result != "err" {
			if payload.DownloadURL == "" {
				return "", fmt.Errorf("stat result for %q has no link: %w", item.Title, ErrNoQualifiedURL)
			}
			return payload.DownloadURL, nil
		}
		if payload.URL == "" {
			return "", fmt.Errorf("stat retry for %q names no follow-up url: %w", item.Title, ErrNoQualifiedURL)
		}
		statURL = "https://" + payload.URL
		c.logger.Warn("stat result not ready, repolling",
			logging.String("title", item.Title),
			logging.Int("attempt", attempt))
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("stat polling for %q exhausted after %d attempts: %w", item.Title, c.pollLimit, ErrNoQualifiedURL)
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bandcamp: build page request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bandcamp: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bandcamp: fetch %s failed (%s): %s", pageURL, resp.Status, strings.TrimSpace(string(body)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bandcamp: read %s: %w", pageURL, err)
	}
	return body, nil
}

// olderThanToken builds the pagination seed the web player would send for
// the newest collection entry.
func (c *Client) olderThanToken(item SummaryItem) string {
	return fmt.Sprintf("%d:%d:%s::", c.now().Unix(), item.ItemID, item.ItemType)
}

// statDownloadURL rewrites a download link into its statdownload probe form.
func statDownloadURL(downloadURL string, nonce int64) string {
	statURL := strings.Replace(downloadURL, "/download/", "/statdownload/", 1)
	statURL = strings.Replace(statURL, "http://", "https://", 1)
	return statURL + "&.vrs=1&.rand=" + strconv.FormatInt(nonce, 10)
}

// statResultPattern captures the JSON argument of the Downloads.statResult
// call the endpoint wraps its payload in.
var statResultPattern = regexp.MustCompile(`if\s*\(\s*window\.Downloads\s*\)\s*\{\s*Downloads\.statResult\s*\(\s*(.*)\s*\)\s*};`)

func parseStatResult(body []byte) (*statResult, error) {
	match := statResultPattern.FindSubmatch(body)
	if match == nil {
		return nil, ErrStatPayloadNotFound
	}
	var payload statResult
	if err := json.Unmarshal(match[1], &payload); err != nil {
		return nil, fmt.Errorf("bandcamp: decode stat payload: %w", err)
	}
	return &payload, nil
}

type collectionRequest struct {
	FanID          int64  `json:"fan_id"`
	OlderThanToken string `json:"older_than_token"`
}

type summaryResponse struct {
	FanID             int64 `json:"fan_id"`
	CollectionSummary struct {
		FanID         int64                  `json:"fan_id"`
		Username      string                 `json:"username"`
		URL           string                 `json:"url"`
		TralbumLookup map[string]lookupEntry `json:"tralbum_lookup"`
	} `json:"collection_summary"`
}

type lookupEntry struct {
	ItemType  string `json:"item_type"`
	ItemID    int64  `json:"item_id"`
	BandID    int64  `json:"band_id"`
	Purchased string `json:"purchased"`
}

type collectionPage struct {
	MoreAvailable  bool              `json:"more_available"`
	LastToken      string            `json:"last_token"`
	RedownloadURLs map[string]string `json:"redownload_urls"`
}

type downloadPage struct {
	DigitalItems []DigitalItem `json:"digital_items"`
}

type statResult struct {
	Result      string `json:"result"`
	DownloadURL string `json:"download_url"`
	URL         string `json:"url"`
}
