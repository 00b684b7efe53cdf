package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Cursor is the last block an ingest stream has stored.
type Cursor struct {
	StreamID  string
	Height    uint64
	Hash      string
	UpdatedAt time.Time
}

// UpsertCursor records the latest stored height/hash for a stream.
func (s *Store) UpsertCursor(ctx context.Context, streamID string, height uint64, hash string) error {
	if streamID == "" {
		return errors.New("streamID required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cursors (stream_id, height, hash, updated_at_ns)
VALUES (?, ?, ?, ?)
ON CONFLICT(stream_id) DO UPDATE SET
  height=excluded.height,
  hash=excluded.hash,
  updated_at_ns=excluded.updated_at_ns;
`, streamID, int64(height), hash, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// GetCursor retrieves the cursor for a stream.
func (s *Store) GetCursor(ctx context.Context, streamID string) (height uint64, hash string, ok bool, err error) {
	var h int64
	row := s.db.QueryRowContext(ctx, `
SELECT height, hash FROM cursors WHERE stream_id = ?;
`, streamID)
	switch err = row.Scan(&h, &hash); {
	case err == nil:
		return uint64(h), hash, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return 0, "", false, nil
	default:
		return 0, "", false, fmt.Errorf("get cursor: %w", err)
	}
}

// ListCursors returns every stored cursor ordered by stream id.
func (s *Store) ListCursors(ctx context.Context) ([]Cursor, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT stream_id, height, hash, updated_at_ns FROM cursors ORDER BY stream_id;
`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var out []Cursor
	for rows.Next() {
		var (
			c       Cursor
			h, upNs int64
		)
		if err := rows.Scan(&c.StreamID, &h, &c.Hash, &upNs); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		c.Height = uint64(h)
		c.UpdatedAt = time.Unix(0, upNs).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCursor forgets a stream so the next ingest restarts from its configured start block.
func (s *Store) DeleteCursor(ctx context.Context, streamID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cursors WHERE stream_id = ?;`, streamID)
	if err != nil {
		return false, fmt.Errorf("delete cursor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete cursor: %w", err)
	}
	return n > 0, nil
}
