// Package syncer orchestrates a full collection synchronization run.
//
// A run scans the purchased collection, partitions item IDs against the
// download cache, fans per-item page fetches and link resolutions out over the
// configured concurrency, and fans every outcome back into a single collector
// loop. The collector is the only writer to the cache: workers hand results
// over a channel and never touch shared state themselves.
//
// Per-item failures are collected with the stage that produced them and never
// abort the batch; scan and cache-load errors do. A file lock under the state
// directory keeps concurrent milkcrate invocations from interleaving cache
// writes.
package syncer
