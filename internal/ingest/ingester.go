// Package ingest fetches event logs from an EVM node and stores them as chunks,
// one confirmed block window at a time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/devblac/eventvault/internal/chunkstore"
	"github.com/devblac/eventvault/internal/config"
	"github.com/devblac/eventvault/internal/logging"
	"github.com/devblac/eventvault/internal/metrics"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrReorgDetected signals that the chain no longer extends the last stored
// window. Stored chunks are never rewritten; the stream stops until an
// operator resolves it.
var ErrReorgDetected = errors.New("reorg detected")

// BlockClient captures the subset of ethclient used by the ingester.
type BlockClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// RPCClient is a thin wrapper over ethclient.Client that satisfies BlockClient.
type RPCClient struct {
	*ethclient.Client
}

// NewRPCClient builds an RPC client to an EVM node.
func NewRPCClient(rpcURL string) (*RPCClient, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return &RPCClient{Client: c}, nil
}

// CursorStore persists the last stored block per stream.
type CursorStore interface {
	GetCursor(ctx context.Context, streamID string) (height uint64, hash string, ok bool, err error)
	UpsertCursor(ctx context.Context, streamID string, height uint64, hash string) error
}

// EventLookup resolves configured event names to ABI definitions.
type EventLookup interface {
	ResolveEventHash(contract, name string) (string, error)
	EventByHash(contract, hash string) (*abi.Event, error)
}

// Stream is one (contract, event) pair being ingested.
type Stream struct {
	Contract   common.Address
	Event      abi.Event
	StartBlock uint64
	ChunkSize  uint64
}

// ID names the stream's cursor.
func (s Stream) ID() string {
	return strings.ToLower(s.Contract.Hex()) + "/" + s.EventHash()
}

// EventHash is the lowercase signature hash of the stream's event.
func (s Stream) EventHash() string {
	return strings.ToLower(s.Event.ID.Hex())
}

// StreamsFromConfig builds a stream for every configured contract event.
func StreamsFromConfig(cfg *config.Config, lookup EventLookup) ([]Stream, error) {
	var out []Stream
	for _, ct := range cfg.Contracts {
		for _, name := range ct.Events {
			hash, err := lookup.ResolveEventHash(ct.Address, name)
			if err != nil {
				return nil, fmt.Errorf("contract %s: %w", ct.Address, err)
			}
			ev, err := lookup.EventByHash(ct.Address, hash)
			if err != nil {
				return nil, fmt.Errorf("contract %s: %w", ct.Address, err)
			}
			out = append(out, Stream{
				Contract:   common.HexToAddress(ct.Address),
				Event:      *ev,
				StartBlock: ct.StartBlock,
				ChunkSize:  ct.ChunkSize,
			})
		}
	}
	return out, nil
}

// Options tunes an Ingester.
type Options struct {
	Confirmations uint64
	// RateLimit caps RPC calls per second; zero disables pacing.
	RateLimit float64
	// StopAt, when set, is the last block any stream ingests.
	StopAt  uint64
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Window describes one stored chunk.
type Window struct {
	StreamID string
	Range    chunkstore.BlockRange
	Records  int
	Path     string
}

// Ingester moves confirmed logs from the chain into the chunk store.
type Ingester struct {
	client        BlockClient
	cursors       CursorStore
	chunks        *chunkstore.Store
	streams       []Stream
	confirmations uint64
	stopAt        uint64
	limiter       *TokenBucket
	log           *slog.Logger
	metrics       *metrics.Metrics
}

// New builds an ingester over the given streams.
func New(client BlockClient, cursors CursorStore, chunks *chunkstore.Store, streams []Stream, opts Options) *Ingester {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Ingester{
		client:        client,
		cursors:       cursors,
		chunks:        chunks,
		streams:       streams,
		confirmations: opts.Confirmations,
		stopAt:        opts.StopAt,
		limiter:       NewTokenBucket(opts.RateLimit, opts.RateLimit),
		log:           log,
		metrics:       opts.Metrics,
	}
}

// Streams returns the configured streams.
func (in *Ingester) Streams() []Stream {
	return in.streams
}

// RunOnce brings every stream up to the confirmed head and returns the windows stored.
func (in *Ingester) RunOnce(ctx context.Context) ([]Window, error) {
	var out []Window
	for _, st := range in.streams {
		for {
			w, err := in.Step(ctx, st)
			if err != nil {
				in.metrics.Errors()
				return out, fmt.Errorf("stream %s: %w", st.ID(), err)
			}
			if w == nil {
				break
			}
			out = append(out, *w)
		}
	}
	return out, nil
}

// Run calls RunOnce every interval until ctx is done.
func (in *Ingester) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		windows, err := in.RunOnce(ctx)
		if err != nil {
			return err
		}
		in.log.Info("tick complete", "windows", len(windows))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Step stores the next window of a stream. It returns nil when the stream has
// reached the confirmed head.
func (in *Ingester) Step(ctx context.Context, st Stream) (*Window, error) {
	if st.ChunkSize == 0 {
		st.ChunkSize = config.DefaultChunkSize
	}
	curHeight, curHash, hasCursor, err := in.cursors.GetCursor(ctx, st.ID())
	if err != nil {
		return nil, err
	}

	latest, err := in.header(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	safeHeight := latest.Number.Uint64()
	if in.confirmations > 0 {
		if in.confirmations > safeHeight {
			return nil, nil
		}
		safeHeight -= in.confirmations
	}
	if in.stopAt > 0 && in.stopAt < safeHeight {
		safeHeight = in.stopAt
	}

	start := st.StartBlock
	if hasCursor {
		start = max(start, curHeight+1)
	}
	// Chunks are the source of truth; a crash between writing a chunk and
	// moving the cursor must not re-ingest the window.
	stored, err := in.storedEnd(ctx, st)
	if err != nil {
		return nil, err
	}
	if stored != nil && *stored+1 > start {
		start = *stored + 1
	}
	if start > safeHeight {
		return nil, nil
	}
	end := min(start+st.ChunkSize-1, safeHeight)

	if hasCursor && curHeight+1 == start {
		first, err := in.header(ctx, new(big.Int).SetUint64(start))
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", start, err)
		}
		if !strings.EqualFold(first.ParentHash.Hex(), curHash) {
			in.log.Error("reorg detected", "stream", st.ID(), "block", start, "stored_parent", curHash, "chain_parent", first.ParentHash.Hex())
			return nil, fmt.Errorf("%w: block %d parent %s, stored %s", ErrReorgDetected, start, first.ParentHash.Hex(), curHash)
		}
	}

	if err := in.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	logs, err := in.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(start),
		ToBlock:   new(big.Int).SetUint64(end),
		Addresses: []common.Address{st.Contract},
		Topics:    [][]common.Hash{{st.Event.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter logs [%d, %d]: %w", start, end, err)
	}
	table, err := decodeLogs(st.Event, logs)
	if err != nil {
		return nil, err
	}

	last, err := in.header(ctx, new(big.Int).SetUint64(end))
	if err != nil {
		return nil, fmt.Errorf("header %d: %w", end, err)
	}

	path, err := in.chunks.WriteChunk(ctx, table, chunkstore.WriteRequest{
		Contract:   st.Contract.Hex(),
		EventHash:  st.EventHash(),
		StartBlock: start,
		EndBlock:   end,
	})
	if err != nil {
		return nil, err
	}
	if err := in.cursors.UpsertCursor(ctx, st.ID(), end, last.Hash().Hex()); err != nil {
		return nil, err
	}
	in.metrics.IngestWindow()
	in.log.Info("window stored", "stream", st.ID(), "event", st.Event.RawName, "from", start, "to", end, "records", table.Len())

	return &Window{
		StreamID: st.ID(),
		Range:    chunkstore.BlockRange{Start: start, End: end},
		Records:  table.Len(),
		Path:     path,
	}, nil
}

// storedEnd returns the last block covered by the stream's chunks, or nil when none exist.
func (in *Ingester) storedEnd(ctx context.Context, st Stream) (*uint64, error) {
	ev, err := in.chunks.ListEvent(ctx, st.Contract.Hex(), chunkstore.Filter{
		EventHash:          st.EventHash(),
		AllowMissingBlocks: true,
	})
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, nil
	}
	end := ev.Coverage.Range().End
	return &end, nil
}

func (in *Ingester) header(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := in.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return in.client.HeaderByNumber(ctx, number)
}
