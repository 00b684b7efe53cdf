package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devblac/eventvault/internal/chunkstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCursorUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, ok, err := store.GetCursor(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected no cursor, ok=%v err=%v", ok, err)
	}
	if err := store.UpsertCursor(ctx, "stream1", 10, "hashA"); err != nil {
		t.Fatalf("upsert cursor: %v", err)
	}
	h, hash, ok, err := store.GetCursor(ctx, "stream1")
	if err != nil || !ok {
		t.Fatalf("get cursor failed err=%v ok=%v", err, ok)
	}
	if h != 10 || hash != "hashA" {
		t.Fatalf("unexpected cursor: %d %s", h, hash)
	}

	if err := store.UpsertCursor(ctx, "stream1", 20, "hashB"); err != nil {
		t.Fatalf("upsert cursor update: %v", err)
	}
	h, hash, ok, err = store.GetCursor(ctx, "stream1")
	if err != nil || !ok || h != 20 || hash != "hashB" {
		t.Fatalf("cursor not updated: %d %s err=%v ok=%v", h, hash, err, ok)
	}
	if err := store.UpsertCursor(ctx, "", 1, "x"); err == nil {
		t.Fatalf("expected error for empty stream id")
	}
}

func TestListAndDeleteCursors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"b", "a"} {
		if err := store.UpsertCursor(ctx, id, uint64(i+1), "h"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	cursors, err := store.ListCursors(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cursors) != 2 || cursors[0].StreamID != "a" || cursors[0].Height != 2 || cursors[0].UpdatedAt.IsZero() {
		t.Fatalf("unexpected cursors %+v", cursors)
	}

	deleted, err := store.DeleteCursor(ctx, "a")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.DeleteCursor(ctx, "a")
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetChunks(ctx, "0xabc", "0xdef"); err != nil || ok {
		t.Fatalf("expected empty cache, ok=%v err=%v", ok, err)
	}

	mtime := time.Unix(1_700_000_000, 123456789)
	entry := chunkstore.CachedChunks{
		DirModTime: mtime,
		CachedAt:   mtime.Add(time.Minute),
		Files: map[string]chunkstore.BlockRange{
			"0__to__9.csv":   {Start: 0, End: 9},
			"10__to__19.csv": {Start: 10, End: 19},
		},
	}
	if err := store.PutChunks(ctx, "0xabc", "0xdef", entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := store.GetChunks(ctx, "0xabc", "0xdef")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.FreshFor(mtime) || len(got.Files) != 2 || got.Files["10__to__19.csv"] != (chunkstore.BlockRange{Start: 10, End: 19}) {
		t.Fatalf("unexpected entry %+v", got)
	}

	entry.Files = map[string]chunkstore.BlockRange{}
	if err := store.PutChunks(ctx, "0xabc", "0xdef", entry); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _, _ = store.GetChunks(ctx, "0xabc", "0xdef")
	if len(got.Files) != 0 {
		t.Fatalf("entry not replaced: %+v", got)
	}

	if err := store.InvalidateChunks(ctx, "0xabc", "0xdef"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := store.GetChunks(ctx, "0xabc", "0xdef"); ok {
		t.Fatalf("entry survived invalidation")
	}
}

func TestCatalogCacheBacksChunkStore(t *testing.T) {
	cache := newTestStore(t)
	ctx := context.Background()
	root := t.TempDir()
	cs := chunkstore.New(chunkstore.Layout{Root: root}, chunkstore.Options{Cache: cache})

	const contract, hash = "0xabc", "0xdef"
	if _, err := cs.WriteChunk(ctx, chunkstore.NewTable(), chunkstore.WriteRequest{Contract: contract, EventHash: hash, StartBlock: 0, EndBlock: 9}); err != nil {
		t.Fatalf("write: %v", err)
	}
	dir := cs.Layout().EventDir(contract, hash)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	ev, err := cs.ListEvent(ctx, contract, chunkstore.Filter{EventHash: hash})
	if err != nil || ev == nil {
		t.Fatalf("list: ev=%v err=%v", ev, err)
	}
	entry, ok, err := cache.GetChunks(ctx, contract, hash)
	if err != nil || !ok || !entry.FreshFor(old) {
		t.Fatalf("listing not cached: ok=%v err=%v entry=%+v", ok, err, entry)
	}
	for name := range entry.Files {
		if strings.HasPrefix(name, ".") {
			t.Fatalf("dot-file cached: %s", name)
		}
	}

	if _, err := cs.WriteChunk(ctx, chunkstore.NewTable(), chunkstore.WriteRequest{Contract: contract, EventHash: hash, StartBlock: 10, EndBlock: 19}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if _, ok, _ := cache.GetChunks(ctx, contract, hash); ok {
		t.Fatalf("write did not invalidate the cache")
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	store.Close()
	if err := store.Ping(ctx); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
}
