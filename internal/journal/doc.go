// Package journal persists synchronization run history in SQLite.
//
// Every sync pass opens a run, appends one failure row per item that could
// not be handled, and closes the run with its totals. The history backs the
// CLI's history views and makes partial failures inspectable after the fact
// without digging through logs.
//
// The database is an archive, not coordination state: nothing reads it to
// decide what to sync next (that is the download cache's job). Schema changes
// bump the version in schema.go; users clear the history to adopt the new
// schema.
package journal
