// Package chainhead resolves the "latest" block sentinel to a concrete height.
package chainhead

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Resolver returns the current highest known block number.
type Resolver interface {
	LatestBlock(ctx context.Context) (uint64, error)
}

// NumberClient captures the subset of ethclient used for head lookups.
type NumberClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// RPC resolves the chain head over JSON-RPC.
type RPC struct {
	client NumberClient
	closer func()
}

// Dial connects to an EVM node.
func Dial(rpcURL string) (*RPC, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return &RPC{client: c, closer: c.Close}, nil
}

// NewRPC wraps an existing client.
func NewRPC(client NumberClient) *RPC {
	return &RPC{client: client}
}

// LatestBlock implements Resolver.
func (r *RPC) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block: %w", err)
	}
	return n, nil
}

// Close releases the underlying connection when Dial created it.
func (r *RPC) Close() {
	if r != nil && r.closer != nil {
		r.closer()
	}
}

// Static always reports the same height.
type Static uint64

// LatestBlock implements Resolver.
func (s Static) LatestBlock(context.Context) (uint64, error) {
	return uint64(s), nil
}
