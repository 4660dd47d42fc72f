package transport

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fallbackRetryPause is used when a 429 response carries no parseable
// Retry-After header.
const fallbackRetryPause = 2 * time.Second

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// windowLimiter grants at most capacity requests per window. The budget
// refills in full when the window rolls over; callers without a token sleep
// until the rollover and re-check.
type windowLimiter struct {
	mu        sync.Mutex
	capacity  int
	window    time.Duration
	remaining int
	windowEnd time.Time
}

func newWindowLimiter(capacity int, window time.Duration) *windowLimiter {
	return &windowLimiter{capacity: capacity, window: window}
}

func (l *windowLimiter) acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if !now.Before(l.windowEnd) {
			l.windowEnd = now.Add(l.window)
			l.remaining = l.capacity
		}
		if l.remaining > 0 {
			l.remaining--
			l.mu.Unlock()
			return nil
		}
		wait := l.windowEnd.Sub(now)
		l.mu.Unlock()

		if err := SleepWithContext(ctx, wait); err != nil {
			return err
		}
		// Another caller may have drained the fresh window while we slept.
	}
}

// retryGate suspends all requests while any of them is waiting out a 429.
type retryGate struct {
	mu    sync.Mutex
	until time.Time
}

func (g *retryGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := time.Until(g.until)
		g.mu.Unlock()
		if remaining <= 0 {
			return nil
		}
		if err := SleepWithContext(ctx, remaining); err != nil {
			return err
		}
	}
}

func (g *retryGate) pause(ctx context.Context, d time.Duration) error {
	g.mu.Lock()
	target := time.Now().Add(d)
	if target.After(g.until) {
		g.until = target
	}
	g.mu.Unlock()
	return g.wait(ctx)
}

func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return fallbackRetryPause
	}
	return time.Duration(seconds) * time.Second
}
