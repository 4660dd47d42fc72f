package transport_test

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"milkcrate/internal/transport"
)

func newClient(t *testing.T, cfg transport.Config) *transport.Client {
	t.Helper()
	client, err := transport.New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestDoSuspendsCallersBeyondWindowBudget(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	t.Cleanup(server.Close)

	window := 400 * time.Millisecond
	client := newClient(t, transport.Config{RateRequests: 2, RateWindow: window})

	start := time.Now()
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do returned error: %v", err)
		}
		resp.Body.Close()
	}
	elapsed := time.Since(start)

	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
	// The third request must wait for the window to roll over.
	if elapsed < window-50*time.Millisecond {
		t.Fatalf("expected third request to be suspended ~%v, elapsed %v", window, elapsed)
	}
}

func TestDoRetriesAfter429AndReplaysBody(t *testing.T) {
	var requests atomic.Int64
	var mu sync.Mutex
	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := newClient(t, transport.Config{RateRequests: 10, RateWindow: time.Second})

	payload := []byte(`{"fan_id": 42}`)
	req, err := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected Retry-After pause before retry, elapsed %v", elapsed)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, body := range bodies {
		if !bytes.Equal(body, payload) {
			t.Fatalf("request %d body = %q, want %q", i+1, body, payload)
		}
	}
}

func TestDoReturnsErrRetriesExhausted(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := newClient(t, transport.Config{RateRequests: 10, RateWindow: time.Second, MaxAttempts: 3})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	_, err = client.Do(req)
	if !errors.Is(err, transport.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 send attempts, got %d", got)
	}
}

func TestDoPassesThroughOtherStatuses(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := newClient(t, transport.Config{RateRequests: 10, RateWindow: time.Second})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 passthrough, got %d", resp.StatusCode)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected no retry for non-429, got %d requests", got)
	}
}
