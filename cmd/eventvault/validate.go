package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/devblac/eventvault/internal/config"
	"github.com/devblac/eventvault/internal/ingest"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

const defaultRPCTimeout = 8 * time.Second

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config, resolve configured events, and ping the RPC endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)

		reg, err := loadRegistry(cfg)
		if err != nil {
			return fmt.Errorf("abi invalid: %w", err)
		}
		streams, err := ingest.StreamsFromConfig(cfg, reg)
		if err != nil {
			return fmt.Errorf("events invalid: %w", err)
		}
		for _, st := range streams {
			fmt.Fprintf(out, "- %s %s -> %s\n", st.Contract.Hex(), st.Event.Sig, st.EventHash())
		}

		if cfg.Chain.RPCURL == "" {
			fmt.Fprintln(out, "- rpc: not configured, skipped")
			fmt.Fprintln(out, "validate: success")
			return nil
		}
		chainID, head, err := pingEVM(cmd.Context(), cfg.Chain.RPCURL)
		if err != nil {
			fmt.Fprintf(out, "- rpc: ERROR %v\n", err)
			return fmt.Errorf("validate: rpc failed connectivity")
		}
		fmt.Fprintf(out, "- rpc: chainId %s head %d OK\n", chainID, head)

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}

// pingEVM reports the chain id and head block of the node at url.
func pingEVM(ctx context.Context, url string) (*big.Int, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultRPCTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, 0, fmt.Errorf("dial evm rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("call eth_chainId: %w", err)
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("call eth_blockNumber: %w", err)
	}
	return chainID, head, nil
}
