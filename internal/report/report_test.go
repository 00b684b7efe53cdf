package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/devblac/eventvault/internal/chunkstore"
)

const (
	contractA = "0x1111111111111111111111111111111111111111"
	contractB = "0x2222222222222222222222222222222222222222"
	hashX     = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	hashY     = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"
)

func seed(t *testing.T, s *chunkstore.Store, contract, hash string, ranges ...chunkstore.BlockRange) {
	t.Helper()
	for _, r := range ranges {
		tbl := chunkstore.NewTable("transaction_hash")
		_ = tbl.Append(chunkstore.Key{BlockNumber: r.Start}, "0xabc")
		if _, err := s.WriteChunk(context.Background(), tbl, chunkstore.WriteRequest{
			Contract: contract, EventHash: hash, StartBlock: r.Start, EndBlock: r.End,
		}); err != nil {
			t.Fatalf("seed %s: %v", r, err)
		}
	}
}

func TestSummary(t *testing.T) {
	s := chunkstore.New(chunkstore.Layout{Root: t.TempDir()}, chunkstore.Options{})
	seed(t, s, contractB, hashX, chunkstore.BlockRange{Start: 0, End: 99}, chunkstore.BlockRange{Start: 100, End: 199})
	seed(t, s, contractA, hashY, chunkstore.BlockRange{Start: 10, End: 19}, chunkstore.BlockRange{Start: 40, End: 49})
	seed(t, s, contractA, hashX, chunkstore.BlockRange{Start: 5, End: 5})

	var buf bytes.Buffer
	if err := Summary(context.Background(), &buf, s); err != nil {
		t.Fatalf("summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "## Contracts (2)" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "- "+contractA+" (2 events)" || lines[4] != "- "+contractB+" (1 events)" {
		t.Fatalf("contract lines out of order:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[2], "    - 0x8c5b...c3b925 [10, 49] (") || !strings.HasSuffix(lines[2], " in 2 files)") {
		t.Fatalf("event line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "    - 0xddf2...23b3ef [5, 5] (") {
		t.Fatalf("event line = %q", lines[3])
	}
	if !strings.Contains(lines[5], " B in 2 files)") {
		t.Fatalf("expected humanized byte count, got %q", lines[5])
	}
}

func TestSummaryEmptyStore(t *testing.T) {
	s := chunkstore.New(chunkstore.Layout{Root: t.TempDir()}, chunkstore.Options{})
	var buf bytes.Buffer
	if err := Summary(context.Background(), &buf, s); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if buf.String() != "## Contracts (0)\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestCoverageListsGaps(t *testing.T) {
	s := chunkstore.New(chunkstore.Layout{Root: t.TempDir()}, chunkstore.Options{})
	seed(t, s, contractA, hashY, chunkstore.BlockRange{Start: 0, End: 99}, chunkstore.BlockRange{Start: 150, End: 1199})
	seed(t, s, contractA, hashX, chunkstore.BlockRange{Start: 0, End: 9})

	names := func(_, hash string) (string, bool) {
		if hash == hashX {
			return "Transfer", true
		}
		return "", false
	}
	var buf bytes.Buffer
	if err := Coverage(context.Background(), &buf, s, strings.ToUpper(contractA[:2])+contractA[2:], names); err != nil {
		t.Fatalf("coverage: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"## " + contractA + " (2 events)",
		"- " + hashY,
		"    blocks:  [0, 1199] (1,200 blocks)",
		"    missing: 50 blocks in 1 gaps: [100, 149]",
		"- Transfer 0xddf2...23b3ef",
		"    missing: none",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash(hashX); got != "0xddf2...23b3ef" {
		t.Fatalf("short hash = %s", got)
	}
	if got := ShortHash("0xabc"); got != "0xabc" {
		t.Fatalf("short hash = %s", got)
	}
}
