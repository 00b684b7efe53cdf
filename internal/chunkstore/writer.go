package chunkstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WriteRequest addresses a new chunk. EventHash wins over EventName when both are set.
type WriteRequest struct {
	Contract   string
	EventHash  string
	EventName  string
	StartBlock uint64
	EndBlock   uint64
	Overwrite  bool
}

// WriteChunk stores t as the chunk [StartBlock, EndBlock] of an event and
// returns its path. An existing chunk at that path is only replaced when
// Overwrite is set, and a range overlapping any other chunk of the event is
// refused. The file appears atomically; a failed call leaves nothing behind.
func (s *Store) WriteChunk(ctx context.Context, t *Table, req WriteRequest) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: nil table", ErrInvalidChunk)
	}
	contract := NormalizeAddress(req.Contract)
	hash, err := s.ResolveEventHash(contract, req.EventHash, req.EventName)
	if err != nil {
		return "", err
	}
	if req.StartBlock > req.EndBlock {
		return "", fmt.Errorf("%w: start block %d after end block %d", ErrInvalidChunk, req.StartBlock, req.EndBlock)
	}
	want := BlockRange{Start: req.StartBlock, End: req.EndBlock}
	for _, rec := range t.Records {
		if !want.Contains(rec.Key.BlockNumber) {
			return "", fmt.Errorf("%w: record %s outside chunk range %s", ErrInvalidChunk, rec.Key, want)
		}
	}

	path := s.layout.ChunkPath(contract, hash, req.StartBlock, req.EndBlock)
	if err := checkTarget(path, req.Overwrite); err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create event dir: %w", err)
	}
	unlock, err := lockDir(ctx, dir)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Re-check under the lock: another writer may have landed meanwhile.
	if err := checkTarget(path, req.Overwrite); err != nil {
		return "", err
	}
	if err := checkNoOverlap(dir, filepath.Base(path), want); err != nil {
		s.metrics.CoverageViolation("overlap")
		return "", fmt.Errorf("event %s: %w", hash, err)
	}

	s.log.Info("saving events to file", "path", path, "records", t.Len())
	if err := writeAtomic(dir, path, t); err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateChunks(ctx, contract, hash); err != nil {
			s.log.Warn("catalog cache invalidation failed", "contract", contract, "event_hash", hash, "error", err)
		}
	}
	s.metrics.ChunkWritten()
	return path, nil
}

func checkTarget(path string, overwrite bool) error {
	ok, err := exists(path)
	if err != nil {
		return err
	}
	if ok && !overwrite {
		return fmt.Errorf("%w: %s (set overwrite to replace it)", ErrAlreadyExists, path)
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("check chunk: %w", err)
	}
}

func checkNoOverlap(dir, self string, want BlockRange) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list chunks in %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || name == self {
			continue
		}
		r, err := ParseChunkName(name)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Join(dir, name), err)
		}
		if r.Overlaps(want) {
			return fmt.Errorf("%w: new range %s overlaps %s", ErrOverlappingChunks, want, name)
		}
	}
	return nil
}

func writeAtomic(dir, path string, t *Table) (err error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp chunk: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = EncodeTable(bw, t); err != nil {
		return fmt.Errorf("encode chunk: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush chunk: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync chunk: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close chunk: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod chunk: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename chunk into place: %w", err)
	}
	return nil
}
