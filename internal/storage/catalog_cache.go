package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devblac/eventvault/internal/chunkstore"
)

var _ chunkstore.CatalogCache = (*Store)(nil)

// GetChunks returns the remembered listing of an event directory.
func (s *Store) GetChunks(ctx context.Context, contract, eventHash string) (chunkstore.CachedChunks, bool, error) {
	var (
		mtimeNs, cachedNs int64
		raw               string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT dir_mtime_ns, cached_at_ns, ranges_json FROM catalog_cache
WHERE contract = ? AND event_hash = ?;
`, contract, eventHash).Scan(&mtimeNs, &cachedNs, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return chunkstore.CachedChunks{}, false, nil
	}
	if err != nil {
		return chunkstore.CachedChunks{}, false, fmt.Errorf("get catalog cache: %w", err)
	}

	var ranges map[string][2]uint64
	if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
		return chunkstore.CachedChunks{}, false, fmt.Errorf("decode catalog cache: %w", err)
	}
	files := make(map[string]chunkstore.BlockRange, len(ranges))
	for name, r := range ranges {
		files[name] = chunkstore.BlockRange{Start: r[0], End: r[1]}
	}
	return chunkstore.CachedChunks{
		DirModTime: time.Unix(0, mtimeNs),
		CachedAt:   time.Unix(0, cachedNs),
		Files:      files,
	}, true, nil
}

// PutChunks stores the listing of an event directory, replacing any previous one.
func (s *Store) PutChunks(ctx context.Context, contract, eventHash string, entry chunkstore.CachedChunks) error {
	ranges := make(map[string][2]uint64, len(entry.Files))
	for name, r := range entry.Files {
		ranges[name] = [2]uint64{r.Start, r.End}
	}
	raw, err := json.Marshal(ranges)
	if err != nil {
		return fmt.Errorf("encode catalog cache: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO catalog_cache (contract, event_hash, dir_mtime_ns, cached_at_ns, ranges_json)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(contract, event_hash) DO UPDATE SET
  dir_mtime_ns=excluded.dir_mtime_ns,
  cached_at_ns=excluded.cached_at_ns,
  ranges_json=excluded.ranges_json;
`, contract, eventHash, entry.DirModTime.UnixNano(), entry.CachedAt.UnixNano(), string(raw))
	if err != nil {
		return fmt.Errorf("put catalog cache: %w", err)
	}
	return nil
}

// InvalidateChunks drops the listing of an event directory.
func (s *Store) InvalidateChunks(ctx context.Context, contract, eventHash string) error {
	if _, err := s.db.ExecContext(ctx, `
DELETE FROM catalog_cache WHERE contract = ? AND event_hash = ?;
`, contract, eventHash); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}
