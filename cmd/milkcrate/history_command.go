package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"milkcrate/internal/journal"
)

const runStampLayout = "2006-01-02 15:04"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showFailures bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past sync runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(ctx, func(store *journal.Store) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					return renderRunDetail(cmd.Context(), out, store, args[0])
				}

				runs, err := store.RecentRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No sync runs recorded")
					return nil
				}
				if showFailures {
					return renderRunDetail(cmd.Context(), out, store, runs[0].RunID)
				}
				renderRunTable(out, runs)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&showFailures, "failures", false, "Show the most recent run with its failures")

	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(ctx, func(store *journal.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Sync history cleared")
				return nil
			})
		},
	}
}

func withJournal(ctx *commandContext, fn func(*journal.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func renderRunTable(out io.Writer, runs []journal.Run) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortRunID(run.RunID),
			run.StartedAt.Local().Format(runStampLayout),
			string(run.Status),
			run.Encoding,
			strconv.Itoa(run.Totals.Items),
			strconv.Itoa(run.Totals.NewlyCached),
			strconv.Itoa(run.Totals.Skipped),
			strconv.Itoa(run.Totals.Failed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "Status", "Encoding", "Items", "New", "Skipped", "Failed"},
		rows, 5, 6, 7, 8))
}

func renderRunDetail(cmdCtx context.Context, out io.Writer, store *journal.Store, runRef string) error {
	run, err := resolveRun(cmdCtx, store, runRef)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run:      %s\n", run.RunID)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Encoding: %s (hidden shelf: %s)\n", run.Encoding, yesNo(run.IncludeHidden))
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(runStampLayout))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(out, "Items:    %d total, %d resolved, %d newly cached, %d skipped, %d without downloads\n",
		run.Totals.Items, run.Totals.Resolved, run.Totals.NewlyCached, run.Totals.Skipped, run.Totals.NoDownloads)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.ErrorMessage)
	}

	failures, err := store.FailuresForRun(cmdCtx, run.RunID)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		fmt.Fprintln(out, "Failures: none")
		return nil
	}
	rows := make([][]string, 0, len(failures))
	for _, failure := range failures {
		label := failure.Title
		if label == "" {
			label = failure.ItemID
		} else if failure.Artist != "" {
			label = fmt.Sprintf("%s by %s", failure.Title, failure.Artist)
		}
		rows = append(rows, []string{failure.ItemID, label, string(failure.Stage), failure.Message})
	}
	fmt.Fprintln(out, renderTable([]string{"Item", "Release", "Stage", "Error"}, rows))
	return nil
}

// resolveRun accepts a full run id or a unique prefix of one.
func resolveRun(cmdCtx context.Context, store *journal.Store, runRef string) (*journal.Run, error) {
	runRef = strings.TrimSpace(runRef)
	if runRef == "" {
		return nil, errors.New("run id is required")
	}

	run, err := store.RunByID(cmdCtx, runRef)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := store.RecentRuns(cmdCtx, 200)
	if err != nil {
		return nil, err
	}
	var match *journal.Run
	for i := range runs {
		if !strings.HasPrefix(runs[i].RunID, runRef) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run id prefix %q is ambiguous", runRef)
		}
		match = &runs[i]
	}
	if match == nil {
		return nil, fmt.Errorf("no sync run matches %q", runRef)
	}
	return match, nil
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
