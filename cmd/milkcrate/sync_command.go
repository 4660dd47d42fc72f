package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"milkcrate/internal/bandcamp"
	"milkcrate/internal/config"
	"milkcrate/internal/downloadcache"
	"milkcrate/internal/fetch"
	"milkcrate/internal/journal"
	"milkcrate/internal/logging"
	"milkcrate/internal/session"
	"milkcrate/internal/syncer"
	"milkcrate/internal/transport"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var (
		encodingFlag  string
		includeHidden bool
		cookiesFlag   string
		cacheFlag     string
		noDownload    bool
		limitFlag     int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan the collection and fetch releases not yet on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(encodingFlag) != "" {
				cfg.Bandcamp.Encoding = encodingFlag
			}
			if cmd.Flags().Changed("include-hidden") {
				cfg.Bandcamp.IncludeHidden = includeHidden
			}
			if strings.TrimSpace(cookiesFlag) != "" {
				expanded, err := config.ExpandPath(cookiesFlag)
				if err != nil {
					return fmt.Errorf("resolve cookies path: %w", err)
				}
				cfg.Bandcamp.CookiesPath = expanded
			}
			cachePath := cfg.CachePath()
			if strings.TrimSpace(cacheFlag) != "" {
				expanded, err := config.ExpandPath(cacheFlag)
				if err != nil {
					return fmt.Errorf("resolve cache path: %w", err)
				}
				cachePath = expanded
			}
			download := cfg.Sync.Download && !noDownload

			return runSync(cmd, cfg, cachePath, download, limitFlag)
		},
	}

	cmd.Flags().StringVarP(&encodingFlag, "encoding", "e", "", "Audio format to resolve (see `milkcrate formats`)")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Also walk the hidden shelf of the collection")
	cmd.Flags().StringVar(&cookiesFlag, "cookies", "", "Cookie export file overriding the configured path")
	cmd.Flags().StringVar(&cacheFlag, "cache", "", "Cache file overriding the configured path")
	cmd.Flags().BoolVar(&noDownload, "no-download", false, "Resolve and print qualified URLs without downloading")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Process at most this many unseen items (0 = all)")
	return cmd
}

func runSync(cmd *cobra.Command, cfg *config.Config, cachePath string, download bool, limit int) error {
	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	cookieFormat, err := session.ParseFormat(cfg.Bandcamp.CookiesFormat)
	if err != nil {
		return err
	}
	jar, err := session.LoadJar(cfg.Bandcamp.CookiesPath, cookieFormat, cfg.Bandcamp.BaseURL)
	if err != nil {
		return err
	}

	client, err := transport.New(transport.Config{
		RateRequests: cfg.Transport.RateRequests,
		RateWindow:   cfg.RateWindow(),
		MaxAttempts:  cfg.Transport.RetryMaxAttempts,
		Timeout:      cfg.RequestTimeout(),
		Jar:          jar,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	platform, err := bandcamp.New(bandcamp.Config{
		BaseURL:      cfg.Bandcamp.BaseURL,
		HTTPClient:   client,
		Logger:       logger,
		PageLimit:    cfg.Sync.PageLimit,
		PollInterval: cfg.StatPollInterval(),
		PollLimit:    cfg.Sync.StatPollLimit,
	})
	if err != nil {
		return err
	}
	cache, err := downloadcache.New(cachePath, logger)
	if err != nil {
		return err
	}

	var store *journal.Store
	if cfg.Sync.Journal {
		store, err = journal.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var fetcher *fetch.Downloader
	if download {
		// Parallel transfers would trample a shared terminal bar, so the
		// progress display only runs for single-worker syncs.
		progress := isatty.IsTerminal(os.Stdout.Fd()) && cfg.Sync.Concurrency == 1
		fetcher, err = fetch.New(fetch.Options{
			Directory: cfg.Paths.DownloadDir,
			Logger:    logger,
			Progress:  progress,
		})
		if err != nil {
			return err
		}
	}

	s, err := syncer.New(syncer.Config{
		Config:  cfg,
		Client:  platform,
		Cache:   cache,
		Journal: store,
		Fetcher: fetcher,
		Limit:   limit,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	result, err := s.Sync(runCtx)
	if err != nil {
		return err
	}
	renderSyncResult(cmd.OutOrStdout(), result)
	return nil
}

func renderSyncResult(out io.Writer, result *syncer.Result) {
	fmt.Fprintf(out, "Scanned %d items: %d already cached, %d without digital content\n",
		result.Items, result.Skipped, result.NoDownloads)

	for _, item := range result.Resolved {
		if item.FilePath != "" {
			fmt.Fprintf(out, "  + %q by %s\n      saved to %s\n", item.Title, item.Artist, item.FilePath)
		} else {
			fmt.Fprintf(out, "  + %q by %s\n      %s\n", item.Title, item.Artist, item.URL)
		}
	}
	for _, failure := range result.Failures {
		label := failure.ItemID
		if failure.Title != "" {
			label = fmt.Sprintf("%q by %s", failure.Title, failure.Artist)
		}
		fmt.Fprintf(out, "  ! %s failed during %s: %v\n", label, failure.Stage, failure.Err)
	}

	if len(result.Resolved) == 0 && len(result.Failures) == 0 {
		fmt.Fprintln(out, "Collection is up to date")
		return
	}
	fmt.Fprintf(out, "Resolved %d releases (%d newly cached, %d failed) in %s\n",
		len(result.Resolved), result.NewlyCached, len(result.Failures),
		result.Elapsed.Round(time.Millisecond))
}
