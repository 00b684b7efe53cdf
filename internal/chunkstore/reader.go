package chunkstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/devblac/eventvault/internal/bytelit"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type boundKind int

const (
	boundOpen boundKind = iota
	boundBlock
	boundLatest
)

// BlockBound is one end of a read range: open, a block number, or the chain head.
// The zero value is open.
type BlockBound struct {
	kind  boundKind
	block uint64
}

// AtBlock bounds a read at a block number.
func AtBlock(n uint64) BlockBound {
	return BlockBound{kind: boundBlock, block: n}
}

// Latest bounds a read at the current chain head.
func Latest() BlockBound {
	return BlockBound{kind: boundLatest}
}

// ParseBlockBound accepts "", "latest", or a decimal block number.
func ParseBlockBound(s string) (BlockBound, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return BlockBound{}, nil
	case "latest":
		return Latest(), nil
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return BlockBound{}, fmt.Errorf("parse block %q: %w", s, err)
	}
	return AtBlock(n), nil
}

// IsOpen reports whether the bound is absent.
func (b BlockBound) IsOpen() bool { return b.kind == boundOpen }

// IsLatest reports whether the bound is the chain head sentinel.
func (b BlockBound) IsLatest() bool { return b.kind == boundLatest }

func (b BlockBound) String() string {
	switch b.kind {
	case boundBlock:
		return strconv.FormatUint(b.block, 10)
	case boundLatest:
		return "latest"
	}
	return "open"
}

// resolve turns the bound into a block pointer; nil means open.
func (b BlockBound) resolve(latest uint64) *uint64 {
	switch b.kind {
	case boundBlock:
		n := b.block
		return &n
	case boundLatest:
		n := latest
		return &n
	}
	return nil
}

// ReadRequest selects a block range of one event. EventHash wins over EventName.
type ReadRequest struct {
	Contract           string
	EventHash          string
	EventName          string
	Start              BlockBound
	End                BlockBound
	AllowMissingBlocks bool
}

// ReadResult is the merged, trimmed, decoded view of an event.
type ReadResult struct {
	EventHash string
	Table     *Table
	// Duplicates lists keys stored more than once. Non-overlapping chunks never
	// produce them, so any entry points at a corrupted chunk.
	Duplicates []Key
	// Gaps lists uncovered blocks inside the requested range; only possible
	// with AllowMissingBlocks.
	Gaps  []BlockRange
	Files int
	Bytes int64
}

// ReadEvents loads every chunk of an event, sorts the records by key, trims
// them to [Start, End], and rewrites fixed-size byte array arguments as 0x hex.
// Bounds beyond the stored coverage fail with ErrDataNotFound.
func (s *Store) ReadEvents(ctx context.Context, req ReadRequest) (*ReadResult, error) {
	contract := NormalizeAddress(req.Contract)
	hash, err := s.ResolveEventHash(contract, req.EventHash, req.EventName)
	if err != nil {
		return nil, err
	}

	ev, err := s.ListEvent(ctx, contract, Filter{EventHash: hash, AllowMissingBlocks: req.AllowMissingBlocks})
	if err != nil {
		return nil, err
	}
	if ev == nil || len(ev.Paths) == 0 {
		return nil, fmt.Errorf("%w: no files for event %s of contract %s", ErrDataNotFound, hash, contract)
	}

	var latest uint64
	if req.Start.IsLatest() || req.End.IsLatest() {
		if s.head == nil {
			return nil, errors.New("latest block requested but no chain head resolver configured")
		}
		if latest, err = s.head.LatestBlock(ctx); err != nil {
			return nil, err
		}
	}
	start, end := req.Start.resolve(latest), req.End.resolve(latest)

	stored := ev.Coverage.Range()
	if start != nil && *start < stored.Start {
		return nil, fmt.Errorf("%w: start block %d outside stored range %s", ErrDataNotFound, *start, stored)
	}
	if end != nil && *end > stored.End {
		return nil, fmt.Errorf("%w: end block %d outside stored range %s", ErrDataNotFound, *end, stored)
	}

	dirBytes, err := ev.Size()
	if err != nil {
		s.log.Debug("event size unavailable", "event_hash", hash, "error", err)
	}
	s.log.Info("loading events", "event_hash", hash, "bytes", dirBytes, "files", len(ev.Paths))

	paths := ev.SortedPaths()
	tables := make([]*Table, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.log.Debug("loading chunk", "path", p)
		t, err := readChunk(p)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	merged := Concat(tables...)
	merged.SortByKey()
	s.metrics.ChunksRead(len(paths), merged.Len())

	dups := merged.DuplicateKeys()
	if len(dups) > 0 {
		s.log.Warn("duplicate record keys across chunks", "event_hash", hash, "count", len(dups), "first", dups[0].String())
	}

	merged.TrimBlocks(start, end)

	if err := s.decodeFixedBytes(contract, hash, merged); err != nil {
		return nil, err
	}

	res := &ReadResult{
		EventHash:  hash,
		Table:      merged,
		Duplicates: dups,
		Files:      len(paths),
		Bytes:      dirBytes,
	}
	if ev.Coverage.MissingBlocks {
		want := stored
		if start != nil {
			want.Start = *start
		}
		if end != nil {
			want.End = *end
		}
		if want.Start <= want.End {
			res.Gaps = ev.Coverage.GapsWithin(want)
		}
	}
	return res, nil
}

func readChunk(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk: %w", err)
	}
	defer f.Close()
	t, err := DecodeTable(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// decodeFixedBytes replaces the stored literal of every bytesN argument with 0x hex.
func (s *Store) decodeFixedBytes(contract, hash string, t *Table) error {
	if s.resolver == nil {
		return nil
	}
	event, err := s.resolver.EventByHash(contract, hash)
	if errors.Is(err, ErrMissingDefinition) {
		s.log.Debug("no event definition, byte columns left as stored", "event_hash", hash)
		return nil
	}
	if err != nil {
		return err
	}

	for _, in := range event.Inputs {
		if in.Type.T != abi.FixedBytesTy {
			continue
		}
		col := ArgColumn(in.Name)
		idx := t.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		for i := range t.Records {
			v := t.Records[i].Values[idx]
			if v == "" {
				continue
			}
			h, err := bytelit.ToHex(v)
			if err != nil {
				return fmt.Errorf("%w: record %s column %s: %v", ErrInvalidChunk, t.Records[i].Key, col, err)
			}
			t.Records[i].Values[idx] = h
		}
	}
	return nil
}
