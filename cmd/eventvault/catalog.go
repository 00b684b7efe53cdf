package main

import (
	"github.com/devblac/eventvault/internal/report"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [contract...]",
	Short: "Show chunk coverage and gaps per event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		contracts := args
		if len(contracts) == 0 {
			if contracts, err = a.chunks.ListContracts(); err != nil {
				return err
			}
		}
		for _, c := range contracts {
			if err := report.Coverage(ctx, cmd.OutOrStdout(), a.chunks, c, a.eventName); err != nil {
				return err
			}
		}
		return nil
	},
}
