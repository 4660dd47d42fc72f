package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"milkcrate/internal/bandcamp"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "formats",
		Short:       "List the audio formats the platform offers",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(bandcamp.Formats()))
			for _, format := range bandcamp.Formats() {
				rows = append(rows, []string{string(format), format.Description()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Format", "Description"}, rows))
			return nil
		},
	}
}
