package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"milkcrate/internal/downloadcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the download cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCachePathCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			releases := cache.List()
			if len(releases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
				return nil
			}

			rows := make([][]string, 0, len(releases))
			for _, release := range releases {
				year := ""
				if release.Year > 0 {
					year = strconv.Itoa(release.Year)
				}
				rows = append(rows, []string{release.ItemID, release.Title, year, release.Artist})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Item", "Title", "Year", "Artist"}, rows, 3))
			fmt.Fprintf(out, "%d cached releases\n", len(releases))
			return nil
		},
	}
}

func newCachePathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.CachePath())
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every cached release",
		Long:  "Forget every cached release. The next sync treats the whole collection as unseen and re-resolves it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			removed := cache.Count()
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is already empty")
				return nil
			}
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached releases\n", removed)
			return nil
		},
	}
}

func openCache(ctx *commandContext) (*downloadcache.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return downloadcache.New(cfg.CachePath(), nil)
}
