package health

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/core/types"
)

// HeaderClient is the part of an EVM client used to probe the node.
type HeaderClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// RPCPing returns a check that fetches the latest header.
func RPCPing(client HeaderClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if _, err := client.HeaderByNumber(ctx, nil); err != nil {
			return fmt.Errorf("evm rpc: %w", err)
		}
		return nil
	}
}

// StoreRootCheck returns a check that the chunk store root is a reachable directory.
func StoreRootCheck(root string) func(ctx context.Context) error {
	return func(context.Context) error {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("store root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("store root %s is not a directory", root)
		}
		return nil
	}
}
