package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"milkcrate/internal/bandcamp"
	"milkcrate/internal/config"
	"milkcrate/internal/downloadcache"
	"milkcrate/internal/fetch"
	"milkcrate/internal/journal"
	"milkcrate/internal/logging"
)

// Config wires the collaborators a sync run needs.
type Config struct {
	// Config supplies concurrency, encoding, and hidden-shelf settings.
	Config *config.Config
	// Client talks to the collection platform. Required.
	Client *bandcamp.Client
	// Cache is the durable record of already-synced items. Required.
	Cache *downloadcache.Cache
	// Journal archives run outcomes. Optional.
	Journal *journal.Store
	// Fetcher saves resolved URLs to disk. Nil leaves the run in handoff
	// mode: qualified URLs are reported but nothing is downloaded.
	Fetcher *fetch.Downloader
	// Limit caps how many unseen items one run processes. Zero means no cap.
	Limit int
	// Logger receives run telemetry. Defaults to a no-op logger.
	Logger *slog.Logger
}

// Syncer runs the scan/resolve/cache pipeline for one collection.
type Syncer struct {
	cfg      *config.Config
	client   *bandcamp.Client
	cache    *downloadcache.Cache
	journal  *journal.Store
	fetcher  *fetch.Downloader
	logger   *slog.Logger
	encoding bandcamp.Format
	limit    int
	lock     *flock.Flock
}

// Result summarizes one completed sync run.
type Result struct {
	// RunID is the journal identifier for this run, empty when the journal
	// is disabled.
	RunID string
	// Encoding is the audio format the run resolved.
	Encoding bandcamp.Format
	// Items counts every item the collection scan returned.
	Items int
	// Skipped counts items already present in the cache.
	Skipped int
	// NoDownloads counts items whose platform page carries no digital
	// content.
	NoDownloads int
	// Resolved lists every item that reached a qualified download URL.
	Resolved []Resolved
	// NewlyCached counts resolutions recorded in the cache this run.
	NewlyCached int
	// Failures lists per-item errors with the stage that produced them.
	Failures []Failure
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Resolved describes one item that reached a qualified download URL.
type Resolved struct {
	ItemID string
	Title  string
	Artist string
	URL    string
	// FilePath is the saved archive location, empty in handoff mode.
	FilePath string
}

// Failure describes one item the run could not finish.
type Failure struct {
	ItemID string
	Title  string
	Artist string
	Stage  journal.Stage
	Err    error
}

// itemOutcome travels from a worker goroutine to the collector loop.
type itemOutcome struct {
	itemID      string
	item        *bandcamp.DigitalItem
	url         string
	path        string
	noDownloads bool
	stage       journal.Stage
	err         error
}

// New validates cfg and returns a Syncer.
func New(cfg Config) (*Syncer, error) {
	if cfg.Config == nil {
		return nil, errors.New("syncer: configuration is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("syncer: platform client is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("syncer: download cache is required")
	}
	encoding, err := bandcamp.ParseFormat(cfg.Config.Bandcamp.Encoding)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		cfg:      cfg.Config,
		client:   cfg.Client,
		cache:    cfg.Cache,
		journal:  cfg.Journal,
		fetcher:  cfg.Fetcher,
		logger:   logging.NewComponentLogger(logger, "syncer"),
		encoding: encoding,
		limit:    cfg.Limit,
		lock:     flock.New(cfg.Config.LockPath()),
	}, nil
}

// Sync runs one full synchronization pass. Per-item failures are collected in
// the returned Result; only scan failures, cache problems, and cancellation
// abort the run. All dispatched work is drained before Sync returns.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	if s == nil {
		return nil, errors.New("syncer: not initialized")
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	held, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("syncer: acquire sync lock: %w", err)
	}
	if !held {
		return nil, errors.New("syncer: another milkcrate instance holds the sync lock")
	}
	defer func() {
		if unlockErr := s.lock.Unlock(); unlockErr != nil {
			s.logger.Warn("failed to release sync lock", logging.Error(unlockErr))
		}
	}()

	start := time.Now()
	logger := s.logger
	var run *journal.Run
	if s.journal != nil {
		run, err = s.journal.BeginRun(ctx, string(s.encoding), s.cfg.Bandcamp.IncludeHidden)
		if err != nil {
			return nil, fmt.Errorf("syncer: record run start: %w", err)
		}
		ctx = logging.WithRunID(ctx, run.RunID)
		logger = logging.WithContext(ctx, logger)
	}

	summary, err := s.client.CollectionSummary(ctx)
	if err != nil {
		s.abortRun(ctx, logger, run, err)
		return nil, err
	}
	urls, err := s.client.AllReleases(ctx, summary, s.cfg.Bandcamp.IncludeHidden)
	if err != nil {
		s.abortRun(ctx, logger, run, err)
		return nil, err
	}

	result := &Result{Encoding: s.encoding, Items: len(urls)}
	unseenIDs := make([]string, 0, len(urls))
	for itemID := range urls {
		if _, cached := s.cache.Lookup(itemID); cached {
			result.Skipped++
			continue
		}
		unseenIDs = append(unseenIDs, itemID)
	}
	slices.Sort(unseenIDs)
	if s.limit > 0 && len(unseenIDs) > s.limit {
		logger.Info("limiting run to first unseen items",
			logging.Int("limit", s.limit),
			logging.Int("deferred", len(unseenIDs)-s.limit))
		unseenIDs = unseenIDs[:s.limit]
	}
	logger.Info("collection scanned",
		logging.String("fan", summary.Username),
		logging.Int("items", result.Items),
		logging.Int("cached", result.Skipped),
		logging.Int("unseen", len(unseenIDs)))

	outcomes := make(chan itemOutcome)
	var workers sync.WaitGroup
	var gate chan struct{}
	if s.cfg.Sync.Concurrency > 0 {
		gate = make(chan struct{}, s.cfg.Sync.Concurrency)
	}
	for _, itemID := range unseenIDs {
		workers.Add(1)
		go func(itemID, itemURL string) {
			defer workers.Done()
			if gate != nil {
				gate <- struct{}{}
				defer func() { <-gate }()
			}
			outcomes <- s.processItem(ctx, itemID, itemURL)
		}(itemID, urls[itemID])
	}
	go func() {
		workers.Wait()
		close(outcomes)
	}()

	// Collector loop: the only writer to the cache and the result.
	for outcome := range outcomes {
		s.collect(ctx, logger, result, outcome)
	}

	result.Elapsed = time.Since(start)
	runErr := ctx.Err()
	if s.journal != nil && run != nil {
		result.RunID = run.RunID
		totals := journal.Totals{
			Items:       result.Items,
			Resolved:    len(result.Resolved),
			NewlyCached: result.NewlyCached,
			Skipped:     result.Skipped,
			NoDownloads: result.NoDownloads,
			Failed:      len(result.Failures),
		}
		if err := s.journal.FinishRun(context.WithoutCancel(ctx), run.RunID, totals, runErr); err != nil {
			logger.Warn("failed to finalize run record", logging.Error(err))
		}
	}
	if runErr != nil {
		return result, runErr
	}

	logger.Info("sync completed",
		logging.String(logging.FieldEventType, "sync_complete"),
		logging.Int("resolved", len(result.Resolved)),
		logging.Int("newly_cached", result.NewlyCached),
		logging.Int("skipped", result.Skipped),
		logging.Int("no_downloads", result.NoDownloads),
		logging.Int("failed", len(result.Failures)),
		logging.Duration("elapsed", result.Elapsed))
	return result, nil
}

// processItem runs the per-item pipeline in a worker goroutine: fetch the item
// page, resolve the requested encoding, and optionally download the archive.
// Cache writes stay with the collector.
func (s *Syncer) processItem(ctx context.Context, itemID, itemURL string) itemOutcome {
	outcome := itemOutcome{itemID: itemID}

	item, err := s.client.ItemDownloads(ctx, itemURL)
	if err != nil {
		outcome.stage, outcome.err = journal.StageFetch, err
		return outcome
	}
	if item == nil {
		outcome.noDownloads = true
		return outcome
	}
	outcome.item = item

	url, err := s.client.ResolveDownload(ctx, item, s.encoding)
	if err != nil {
		outcome.stage, outcome.err = journal.StageResolve, err
		return outcome
	}
	outcome.url = url

	if s.fetcher != nil {
		saved, err := s.fetcher.Save(ctx, url, item, s.encoding)
		if err != nil {
			outcome.stage, outcome.err = journal.StageDownload, err
			return outcome
		}
		outcome.path = saved.Path
	}
	return outcome
}

// collect folds one worker outcome into the result. Successful resolutions
// enter the cache here so the cache only ever sees a single writer.
func (s *Syncer) collect(ctx context.Context, logger *slog.Logger, result *Result, outcome itemOutcome) {
	switch {
	case outcome.err != nil:
		failure := Failure{ItemID: outcome.itemID, Stage: outcome.stage, Err: outcome.err}
		if outcome.item != nil {
			failure.Title = outcome.item.Title
			failure.Artist = outcome.item.Artist
		}
		result.Failures = append(result.Failures, failure)
		if errors.Is(outcome.err, context.Canceled) {
			return
		}
		logger.Warn("item failed",
			logging.String(logging.FieldItemID, outcome.itemID),
			logging.String(logging.FieldStage, string(outcome.stage)),
			logging.Error(outcome.err))
		s.journalFailure(ctx, logger, failure)
	case outcome.noDownloads:
		result.NoDownloads++
		logger.Info("item page carries no digital content",
			logging.String(logging.FieldItemID, outcome.itemID))
	default:
		resolved := Resolved{
			ItemID:   outcome.itemID,
			Title:    outcome.item.Title,
			Artist:   outcome.item.Artist,
			URL:      outcome.url,
			FilePath: outcome.path,
		}
		result.Resolved = append(result.Resolved, resolved)
		release := downloadcache.Release{
			ItemID: outcome.itemID,
			Title:  outcome.item.Title,
			Year:   outcome.item.ReleaseYear(),
			Artist: outcome.item.Artist,
		}
		if err := s.cache.Store(release); err != nil {
			failure := Failure{
				ItemID: outcome.itemID,
				Title:  outcome.item.Title,
				Artist: outcome.item.Artist,
				Stage:  journal.StageCache,
				Err:    err,
			}
			result.Failures = append(result.Failures, failure)
			logger.Error("failed to cache resolved item",
				logging.String(logging.FieldItemID, outcome.itemID),
				logging.Error(err))
			s.journalFailure(ctx, logger, failure)
			return
		}
		result.NewlyCached++
		logger.Info("release resolved",
			logging.String(logging.FieldItemID, outcome.itemID),
			logging.String("title", resolved.Title),
			logging.String("artist", resolved.Artist))
	}
}

// abortRun closes the journal row when the scan itself fails.
func (s *Syncer) abortRun(ctx context.Context, logger *slog.Logger, run *journal.Run, cause error) {
	if s.journal == nil || run == nil {
		return
	}
	if err := s.journal.FinishRun(context.WithoutCancel(ctx), run.RunID, journal.Totals{}, cause); err != nil {
		logger.Warn("failed to finalize aborted run", logging.Error(err))
	}
}

func (s *Syncer) journalFailure(ctx context.Context, logger *slog.Logger, failure Failure) {
	if s.journal == nil || failure.Err == nil {
		return
	}
	runID, ok := logging.RunIDFromContext(ctx)
	if !ok {
		return
	}
	record := journal.Failure{
		RunID:   runID,
		ItemID:  failure.ItemID,
		Title:   failure.Title,
		Artist:  failure.Artist,
		Stage:   failure.Stage,
		Message: failure.Err.Error(),
	}
	if err := s.journal.RecordFailure(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("failed to record item failure", logging.Error(err))
	}
}
