package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/devblac/eventvault/internal/chunkstore"
	"github.com/spf13/cobra"
)

var (
	flagImpContract  string
	flagImpEvent     string
	flagImpHash      string
	flagImpFrom      uint64
	flagImpTo        uint64
	flagImpOverwrite bool
)

func init() {
	f := importCmd.Flags()
	f.StringVar(&flagImpContract, "contract", "", "Contract address (required)")
	f.StringVar(&flagImpEvent, "event", "", "Event name, resolved through the contract ABI")
	f.StringVar(&flagImpHash, "hash", "", "Event signature hash (overrides --event)")
	f.Uint64Var(&flagImpFrom, "from", 0, "First block the file covers (required)")
	f.Uint64Var(&flagImpTo, "to", 0, "Last block the file covers (required)")
	f.BoolVar(&flagImpOverwrite, "overwrite", false, "Replace an existing chunk with the same range")
	_ = importCmd.MarkFlagRequired("contract")
	_ = importCmd.MarkFlagRequired("from")
	_ = importCmd.MarkFlagRequired("to")
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Store a CSV file of events as one chunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		table, err := chunkstore.DecodeTable(bufio.NewReader(f))
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		ctx := cmd.Context()
		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		table.SortByKey()
		path, err := a.chunks.WriteChunk(ctx, table, chunkstore.WriteRequest{
			Contract:   flagImpContract,
			EventHash:  flagImpHash,
			EventName:  flagImpEvent,
			StartBlock: flagImpFrom,
			EndBlock:   flagImpTo,
			Overwrite:  flagImpOverwrite,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "import: %d record(s) -> %s\n", table.Len(), path)
		return nil
	},
}
