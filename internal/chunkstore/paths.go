package chunkstore

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ChunkPathTemplate is the on-disk location of a chunk relative to the data root.
// Existing stores depend on it; changing any field or separator orphans their files.
const ChunkPathTemplate = "events/contract__{contract_address}/event__{event_hash}/{start_block}__to__{end_block}.csv"

const (
	eventsDirName  = "events"
	contractPrefix = "contract__"
	eventPrefix    = "event__"
	nameSeparator  = "__"
	rangeWord      = "to"
)

// Layout derives chunk locations under a data root. It performs no I/O.
type Layout struct {
	Root string
}

// NormalizeAddress lowercases a contract address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeHash lowercases an event signature hash.
func NormalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// EventsRoot is the directory holding every contract directory.
func (l Layout) EventsRoot() string {
	return filepath.Join(l.Root, eventsDirName)
}

// ContractDir is the directory holding every event directory of a contract.
func (l Layout) ContractDir(address string) string {
	return filepath.Join(l.EventsRoot(), contractPrefix+NormalizeAddress(address))
}

// EventDir is the directory holding the chunks of one event.
func (l Layout) EventDir(address, eventHash string) string {
	return filepath.Join(l.ContractDir(address), eventPrefix+NormalizeHash(eventHash))
}

// ChunkPath formats ChunkPathTemplate for one chunk.
func (l Layout) ChunkPath(address, eventHash string, startBlock, endBlock uint64) string {
	sub := strings.NewReplacer(
		"{contract_address}", NormalizeAddress(address),
		"{event_hash}", NormalizeHash(eventHash),
		"{start_block}", strconv.FormatUint(startBlock, 10),
		"{end_block}", strconv.FormatUint(endBlock, 10),
	).Replace(ChunkPathTemplate)
	return filepath.Join(l.Root, filepath.FromSlash(sub))
}

// ParseChunkName extracts the block range from a chunk file name such as
// 100__to__199.csv. Zero-padded numbers are accepted.
func ParseChunkName(name string) (BlockRange, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, nameSeparator)
	if len(parts) != 3 || parts[1] != rangeWord {
		return BlockRange{}, fmt.Errorf("%w: chunk name %q", ErrInvalidChunk, name)
	}
	start, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("%w: chunk name %q: start block: %v", ErrInvalidChunk, name, err)
	}
	end, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("%w: chunk name %q: end block: %v", ErrInvalidChunk, name, err)
	}
	if start > end {
		return BlockRange{}, fmt.Errorf("%w: chunk name %q: start block after end block", ErrInvalidChunk, name)
	}
	return BlockRange{Start: start, End: end}, nil
}

func contractFromDirName(name string) (string, bool) {
	if !strings.HasPrefix(name, contractPrefix) {
		return "", false
	}
	return NormalizeAddress(strings.TrimPrefix(name, contractPrefix)), true
}

func hashFromDirName(name string) (string, bool) {
	if !strings.HasPrefix(name, eventPrefix) {
		return "", false
	}
	return NormalizeHash(strings.TrimPrefix(name, eventPrefix)), true
}
