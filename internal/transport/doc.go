// Package transport owns the HTTP client shared by every platform request.
//
// It enforces two policies the platform expects from well-behaved clients: a
// fixed-window request budget (at most N requests per window, late callers
// sleep until the window rolls over) and bounded retries on HTTP 429 with the
// server's Retry-After honoured. A 429 pauses all in-flight callers, not just
// the one that received it, so a burst cannot immediately re-trigger the
// limit.
//
// Locks are never held across network calls or sleeps; every wait is
// cancellable through the request context.
package transport
