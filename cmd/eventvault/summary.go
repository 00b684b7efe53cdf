package main

import (
	"github.com/devblac/eventvault/internal/report"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print stored contracts, events, block ranges, and disk usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		return report.Summary(cmd.Context(), cmd.OutOrStdout(), a.chunks)
	},
}
