package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/devblac/eventvault/internal/ingest"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var flagStateReset string

func init() {
	stateCmd.Flags().StringVar(&flagStateReset, "reset", "", "Forget the cursor of a stream id")
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show ingest cursors and lag behind the chain head",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, appOptions{dialHead: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if a.meta == nil {
			return errors.New("state needs store.cache_db")
		}
		out := cmd.OutOrStdout()

		if flagStateReset != "" {
			deleted, err := a.meta.DeleteCursor(ctx, flagStateReset)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("no cursor for stream %s", flagStateReset)
			}
			fmt.Fprintf(out, "state: cursor %s reset\n", flagStateReset)
			return nil
		}

		var head uint64
		if a.head != nil {
			if head, err = a.head.LatestBlock(ctx); err != nil {
				a.log.Warn("head lookup failed, lag not shown", "error", err)
				head = 0
			}
		}

		names := map[string]string{}
		if streams, err := ingest.StreamsFromConfig(a.cfg, a.reg); err == nil {
			for _, st := range streams {
				names[st.ID()] = st.Event.RawName
			}
		}

		cursors, err := a.meta.ListCursors(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STREAM\tEVENT\tHEIGHT\tLAG\tUPDATED")
		for _, c := range cursors {
			lag := "-"
			if head > 0 && head >= c.Height {
				lag = humanize.Comma(int64(head - c.Height))
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", c.StreamID, names[c.StreamID], c.Height, lag, humanize.Time(c.UpdatedAt))
		}
		return tw.Flush()
	},
}
