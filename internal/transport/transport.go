package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"milkcrate/internal/logging"
)

const (
	// DefaultRateRequests and DefaultRateWindow reflect the platform's
	// tolerated request budget.
	DefaultRateRequests = 10
	DefaultRateWindow   = 10 * time.Second
	// DefaultMaxAttempts bounds how often a single request is sent before
	// giving up on 429 responses.
	DefaultMaxAttempts = 5
	DefaultTimeout     = 60 * time.Second
)

// ErrRetriesExhausted reports that a request kept receiving 429 responses
// until its attempt budget ran out.
var ErrRetriesExhausted = errors.New("transport: retry attempts exhausted")

// Config describes shared transport construction parameters.
type Config struct {
	RateRequests int
	RateWindow   time.Duration
	MaxAttempts  int
	Timeout      time.Duration
	Jar          http.CookieJar
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client is the rate-limited, retry-aware HTTP client every platform call
// goes through.
type Client struct {
	http        *http.Client
	limiter     *windowLimiter
	gate        *retryGate
	maxAttempts int
	logger      *slog.Logger
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	rate := cfg.RateRequests
	if rate == 0 {
		rate = DefaultRateRequests
	}
	if rate < 0 {
		return nil, errors.New("transport: rate requests must be positive")
	}
	window := cfg.RateWindow
	if window == 0 {
		window = DefaultRateWindow
	}
	if window < 0 {
		return nil, errors.New("transport: rate window must be positive")
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = DefaultMaxAttempts
	}
	if attempts < 0 {
		return nil, errors.New("transport: max attempts must be positive")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil && cfg.Jar != nil {
		httpClient.Jar = cfg.Jar
	}

	return &Client{
		http:        httpClient,
		limiter:     newWindowLimiter(rate, window),
		gate:        &retryGate{},
		maxAttempts: attempts,
		logger:      logging.NewComponentLogger(cfg.Logger, "transport"),
	}, nil
}

// Do sends the request through the rate limiter and retries it after 429
// responses. Waiting out another request's pause does not consume attempts;
// only actual sends do. Non-429 responses pass through unmodified.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for attempt := 1; ; attempt++ {
		if err := c.gate.wait(ctx); err != nil {
			return nil, err
		}
		if err := c.limiter.acquire(ctx); err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		pause := parseRetryAfter(resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		resp.Body.Close()

		if attempt >= c.maxAttempts {
			return nil, fmt.Errorf("%s %s after %d attempts: %w", req.Method, req.URL.Path, attempt, ErrRetriesExhausted)
		}

		c.logger.Warn("platform rate limited, pausing all requests",
			logging.Duration("retry_after", pause),
			logging.Int("attempt", attempt),
			logging.String("path", req.URL.Path))

		if err := c.gate.pause(ctx, pause); err != nil {
			return nil, err
		}
		if err := rewindBody(req); err != nil {
			return nil, err
		}
	}
}

func rewindBody(req *http.Request) error {
	if req.Body == nil {
		return nil
	}
	if req.GetBody == nil {
		return fmt.Errorf("%s %s: request body cannot be replayed", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}
