package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"milkcrate/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			cfg, path, exists, err := config.Load(configFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file:    %s", path)
			if !exists {
				fmt.Fprint(out, " (not present, defaults in effect)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "State dir:      %s\n", cfg.Paths.StateDir)
			fmt.Fprintf(out, "Download dir:   %s\n", cfg.Paths.DownloadDir)
			fmt.Fprintf(out, "Log dir:        %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Cookies:        %s (%s)\n", cfg.Bandcamp.CookiesPath, cfg.Bandcamp.CookiesFormat)
			fmt.Fprintf(out, "Encoding:       %s\n", cfg.Bandcamp.Encoding)
			fmt.Fprintf(out, "Hidden shelf:   %s\n", yesNo(cfg.Bandcamp.IncludeHidden))
			fmt.Fprintf(out, "Rate limit:     %d requests per %ds\n", cfg.Transport.RateRequests, cfg.Transport.RateWindowSeconds)
			fmt.Fprintf(out, "Concurrency:    %d\n", cfg.Sync.Concurrency)
			fmt.Fprintf(out, "Download files: %s\n", yesNo(cfg.Sync.Download))
			fmt.Fprintf(out, "Keep history:   %s\n", yesNo(cfg.Sync.Journal))
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to point cookies_path at a cookie export before running a sync.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}
