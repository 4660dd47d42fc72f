package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status tracks a run through its lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage names the pipeline operation that failed for an item.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageResolve  Stage = "resolve"
	StageDownload Stage = "download"
	StageCache    Stage = "cache"
)

// Run records one synchronization pass over the collection.
type Run struct {
	ID            int64
	RunID         string
	Status        Status
	Encoding      string
	IncludeHidden bool
	StartedAt     time.Time
	FinishedAt    *time.Time
	Totals        Totals
	ErrorMessage  string
}

// Totals summarize the items a run touched.
type Totals struct {
	Items       int
	Resolved    int
	NewlyCached int
	Skipped     int
	NoDownloads int
	Failed      int
}

// Failure records one item that could not be handled during a run.
type Failure struct {
	ID        int64
	RunID     string
	ItemID    string
	Title     string
	Artist    string
	Stage     Stage
	Message   string
	CreatedAt time.Time
}

// BeginRun inserts a new running entry and returns it.
func (s *Store) BeginRun(ctx context.Context, encoding string, includeHidden bool) (*Run, error) {
	runID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.exec(ctx,
		`INSERT INTO runs (run_id, status, encoding, include_hidden, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, StatusRunning, encoding, boolToInt(includeHidden), now,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return s.RunByID(ctx, runID)
}

// FinishRun closes out a run with its totals. A non-nil runErr marks the run
// failed and keeps its message.
func (s *Store) FinishRun(ctx context.Context, runID string, totals Totals, runErr error) error {
	status := StatusCompleted
	var message any
	if runErr != nil {
		status = StatusFailed
		message = runErr.Error()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.exec(ctx,
		`UPDATE runs
         SET status = ?, finished_at = ?, total_items = ?, resolved = ?, newly_cached = ?,
             skipped = ?, no_downloads = ?, failed = ?, error_message = ?
         WHERE run_id = ?`,
		status, now, totals.Items, totals.Resolved, totals.NewlyCached,
		totals.Skipped, totals.NoDownloads, totals.Failed, message, runID,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordFailure appends one failed item to a run.
func (s *Store) RecordFailure(ctx context.Context, failure Failure) error {
	if failure.RunID == "" {
		return errors.New("journal: failure needs a run id")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.exec(ctx,
		`INSERT INTO run_failures (run_id, item_id, title, artist, stage, error_message, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		failure.RunID, failure.ItemID, nullableString(failure.Title), nullableString(failure.Artist),
		failure.Stage, failure.Message, now,
	); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// RunByID fetches a run by its public id. Missing runs return nil.
func (s *Store) RunByID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FailuresForRun returns a run's failures in insertion order.
func (s *Store) FailuresForRun(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_id, item_id, title, artist, stage, error_message, created_at
         FROM run_failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			failure    Failure
			title      sql.NullString
			artist     sql.NullString
			stage      string
			createdRaw string
		)
		if err := rows.Scan(&failure.ID, &failure.RunID, &failure.ItemID, &title, &artist,
			&stage, &failure.Message, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failure.Title = title.String
		failure.Artist = artist.String
		failure.Stage = Stage(stage)
		if created, err := parseTimeString(createdRaw); err == nil {
			failure.CreatedAt = created
		}
		failures = append(failures, failure)
	}
	return failures, rows.Err()
}

// Clear removes all run history. Failures cascade with their runs.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.exec(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	return nil
}

const runColumns = "id, run_id, status, encoding, include_hidden, started_at, finished_at, total_items, resolved, newly_cached, skipped, no_downloads, failed, error_message"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id          int64
		runID       string
		status      string
		encoding    string
		hidden      sql.NullInt64
		startedRaw  string
		finishedRaw sql.NullString
		totals      Totals
		message     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&status,
		&encoding,
		&hidden,
		&startedRaw,
		&finishedRaw,
		&totals.Items,
		&totals.Resolved,
		&totals.NewlyCached,
		&totals.Skipped,
		&totals.NoDownloads,
		&totals.Failed,
		&message,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:            id,
		RunID:         runID,
		Status:        Status(status),
		Encoding:      encoding,
		IncludeHidden: hidden.Int64 != 0,
		Totals:        totals,
		ErrorMessage:  message.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}
