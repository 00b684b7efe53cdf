package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RacyWindow is how long after a directory's last modification a cache entry
// must have been recorded before it is trusted. Filesystems with coarse
// timestamps can give two writes the same mtime.
const RacyWindow = 2 * time.Second

// Filter selects events during a catalog build.
type Filter struct {
	EventHash          string
	EventName          string
	AllowMissingBlocks bool
}

// EventChunks is the catalog entry of one event.
type EventChunks struct {
	EventHash string
	// Dirs are the event directories as named on disk.
	Dirs      []string
	Paths     map[string]BlockRange
	Coverage  *Coverage
}

// Size returns the total bytes stored in the event's directories.
func (e *EventChunks) Size() (int64, error) {
	var total int64
	for _, dir := range e.Dirs {
		n, err := DirSize(dir)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// SortedPaths returns the chunk paths ordered by start block.
func (e *EventChunks) SortedPaths() []string {
	paths := make([]string, 0, len(e.Paths))
	for p := range e.Paths {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		ri, rj := e.Paths[paths[i]], e.Paths[paths[j]]
		if ri.Start != rj.Start {
			return ri.Start < rj.Start
		}
		return paths[i] < paths[j]
	})
	return paths
}

// Catalog maps event signature hashes to their chunks.
type Catalog map[string]*EventChunks

// Hashes returns the event hashes in sorted order.
func (c Catalog) Hashes() []string {
	out := make([]string, 0, len(c))
	for h := range c {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// CachedChunks is a remembered directory listing of one event.
type CachedChunks struct {
	DirModTime time.Time
	CachedAt   time.Time
	Files      map[string]BlockRange
}

// FreshFor reports whether the entry still describes a directory whose
// modification time is mtime.
func (c CachedChunks) FreshFor(mtime time.Time) bool {
	return c.DirModTime.Equal(mtime) && c.CachedAt.Sub(mtime) >= RacyWindow
}

// CatalogCache remembers event directory listings between catalog builds.
// Entries are only hints; every use is checked with FreshFor.
type CatalogCache interface {
	GetChunks(ctx context.Context, contract, eventHash string) (CachedChunks, bool, error)
	PutChunks(ctx context.Context, contract, eventHash string, entry CachedChunks) error
	InvalidateChunks(ctx context.Context, contract, eventHash string) error
}

// ListContracts returns the addresses that have a contract directory.
func (s *Store) ListContracts() ([]string, error) {
	entries, err := os.ReadDir(s.layout.EventsRoot())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	var out []string
	seen := map[string]bool{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if addr, ok := contractFromDirName(e.Name()); ok && !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListContractEvents scans a contract directory and validates the coverage of
// every matching event. A missing root or contract directory yields an empty
// catalog.
func (s *Store) ListContractEvents(ctx context.Context, contract string, f Filter) (Catalog, error) {
	contract = NormalizeAddress(contract)

	var queryHash string
	if f.EventName != "" {
		h, err := s.ResolveEventHash(contract, "", f.EventName)
		if err != nil {
			return nil, err
		}
		queryHash = h
	}
	if f.EventHash != "" {
		queryHash = NormalizeHash(f.EventHash)
	}

	contractDirs, err := s.contractDirs(contract)
	if err != nil {
		return nil, err
	}

	// Directory names are matched case-insensitively; I/O goes through the
	// names found on disk.
	found := map[string]*EventChunks{}
	var order []string
	for _, contractDir := range contractDirs {
		entries, err := os.ReadDir(contractDir)
		if err != nil {
			return nil, fmt.Errorf("list events of %s: %w", contract, err)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !e.IsDir() {
				continue
			}
			hash, ok := hashFromDirName(e.Name())
			if !ok {
				continue
			}
			if queryHash != "" && hash != queryHash {
				continue
			}

			eventDir := filepath.Join(contractDir, e.Name())
			canonical := eventDir == s.layout.EventDir(contract, hash)
			files, err := s.scanEventDir(ctx, contract, hash, eventDir, canonical)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				continue
			}

			ev, ok := found[hash]
			if !ok {
				ev = &EventChunks{EventHash: hash, Paths: map[string]BlockRange{}}
				found[hash] = ev
				order = append(order, hash)
			}
			ev.Dirs = append(ev.Dirs, eventDir)
			for name, r := range files {
				ev.Paths[filepath.Join(eventDir, name)] = r
			}
		}
	}

	catalog := make(Catalog, len(found))
	for _, hash := range order {
		ev := found[hash]
		ranges := make([]BlockRange, 0, len(ev.Paths))
		for _, r := range ev.Paths {
			ranges = append(ranges, r)
		}
		cov, err := BuildCoverage(hash, ranges, f.AllowMissingBlocks)
		if err != nil {
			s.recordViolation(err)
			return nil, fmt.Errorf("contract %s: %w", contract, err)
		}
		ev.Coverage = cov
		catalog[hash] = ev
	}
	return catalog, nil
}

// contractDirs returns every directory under the events root whose name
// denotes contract, the canonical lowercase one first.
func (s *Store) contractDirs(contract string) ([]string, error) {
	root := s.layout.EventsRoot()
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	canonical := s.layout.ContractDir(contract)
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		addr, ok := contractFromDirName(e.Name())
		if !ok || addr != contract {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if dir == canonical {
			dirs = append([]string{dir}, dirs...)
		} else {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// ListEvent returns the catalog entry of a single event, or nil when it has no chunks.
func (s *Store) ListEvent(ctx context.Context, contract string, f Filter) (*EventChunks, error) {
	if f.EventHash == "" && f.EventName == "" {
		return nil, fmt.Errorf("%w: event hash or name is required", ErrMissingDefinition)
	}
	catalog, err := s.ListContractEvents(ctx, contract, f)
	if err != nil {
		return nil, err
	}
	if len(catalog) != 1 {
		return nil, nil
	}
	for _, ev := range catalog {
		return ev, nil
	}
	return nil, nil
}

// ListAllContractEvents builds the catalog of every contract in the store.
func (s *Store) ListAllContractEvents(ctx context.Context, f Filter) (map[string]Catalog, error) {
	contracts, err := s.ListContracts()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Catalog, len(contracts))
	for _, c := range contracts {
		catalog, err := s.ListContractEvents(ctx, c, f)
		if err != nil {
			return nil, err
		}
		out[c] = catalog
	}
	return out, nil
}

// scanEventDir returns chunk file name → block range for one event directory.
// Dot-files (lock and in-flight temp files) are ignored. Only canonical
// directories use the catalog cache, which is keyed by (contract, hash).
func (s *Store) scanEventDir(ctx context.Context, contract, hash, dir string, canonical bool) (map[string]BlockRange, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", hash, err)
	}
	useCache := s.cache != nil && canonical

	if useCache {
		entry, ok, err := s.cache.GetChunks(ctx, contract, hash)
		if err != nil {
			s.log.Warn("catalog cache read failed", "contract", contract, "event_hash", hash, "error", err)
		} else if ok && entry.FreshFor(info.ModTime()) {
			s.metrics.CatalogCacheHit()
			return entry.Files, nil
		}
	}

	s.metrics.CatalogScan()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", hash, err)
	}
	files := make(map[string]BlockRange, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		r, err := ParseChunkName(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Join(dir, name), err)
		}
		files[name] = r
	}

	if useCache {
		entry := CachedChunks{DirModTime: info.ModTime(), CachedAt: s.now(), Files: files}
		if err := s.cache.PutChunks(ctx, contract, hash, entry); err != nil {
			s.log.Warn("catalog cache write failed", "contract", contract, "event_hash", hash, "error", err)
		}
	}
	return files, nil
}

func (s *Store) recordViolation(err error) {
	switch {
	case errors.Is(err, ErrOverlappingChunks):
		s.metrics.CoverageViolation("overlap")
	case errors.Is(err, ErrMissingBlocks):
		s.metrics.CoverageViolation("missing_blocks")
	}
}
