package chunkstore

import (
	"errors"
	"reflect"
	"testing"
)

func TestBuildCoverageContiguous(t *testing.T) {
	cov, err := BuildCoverage("0xabc", []BlockRange{{50, 99}, {0, 49}}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cov.MinBlock != 0 || cov.MaxBlock != 100 || cov.Len() != 100 {
		t.Fatalf("unexpected span [%d, %d)", cov.MinBlock, cov.MaxBlock)
	}
	if cov.MissingBlocks || cov.MissingCount() != 0 || len(cov.Gaps()) != 0 {
		t.Fatalf("expected full coverage")
	}
	if cov.Range() != (BlockRange{0, 99}) {
		t.Fatalf("range = %s", cov.Range())
	}
}

func TestBuildCoverageSingleBlockChunks(t *testing.T) {
	cov, err := BuildCoverage("0xabc", []BlockRange{{7, 7}, {8, 8}}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cov.Len() != 2 || !cov.Covered(7) || !cov.Covered(8) || cov.Covered(9) || cov.Covered(6) {
		t.Fatalf("unexpected coverage of single-block chunks")
	}
}

func TestBuildCoverageOverlap(t *testing.T) {
	tests := []struct {
		name   string
		ranges []BlockRange
	}{
		{"partial", []BlockRange{{0, 50}, {50, 99}}},
		{"contained", []BlockRange{{0, 99}, {10, 20}}},
		{"identical", []BlockRange{{5, 9}, {5, 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCoverage("0xabc", tt.ranges, true)
			if !errors.Is(err, ErrOverlappingChunks) {
				t.Fatalf("expected overlapping chunks, got %v", err)
			}
		})
	}
}

func TestBuildCoverageGaps(t *testing.T) {
	ranges := []BlockRange{{0, 99}, {150, 199}}

	if _, err := BuildCoverage("0xabc", ranges, false); !errors.Is(err, ErrMissingBlocks) {
		t.Fatalf("expected missing blocks, got %v", err)
	}

	cov, err := BuildCoverage("0xabc", ranges, true)
	if err != nil {
		t.Fatalf("build with gaps allowed: %v", err)
	}
	if !cov.MissingBlocks {
		t.Fatalf("expected missing blocks flag")
	}
	if cov.Len() != 200 {
		t.Fatalf("span length = %d, want 200", cov.Len())
	}
	// [100, 149] is absent.
	if cov.MissingCount() != 50 {
		t.Fatalf("missing = %d, want 50", cov.MissingCount())
	}
	if got := cov.Gaps(); !reflect.DeepEqual(got, []BlockRange{{100, 149}}) {
		t.Fatalf("gaps = %v", got)
	}
	if cov.Covered(120) || !cov.Covered(99) || !cov.Covered(150) {
		t.Fatalf("mask disagrees with chunks")
	}
	if got := cov.GapsWithin(BlockRange{140, 160}); !reflect.DeepEqual(got, []BlockRange{{140, 149}}) {
		t.Fatalf("clipped gaps = %v", got)
	}
}

func TestBuildCoverageIsIdempotent(t *testing.T) {
	ranges := []BlockRange{{10, 19}, {40, 49}, {20, 29}}
	a, err := BuildCoverage("0xabc", ranges, true)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	b, err := BuildCoverage("0xabc", ranges, true)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if a.MinBlock != b.MinBlock || a.MaxBlock != b.MaxBlock || !a.Mask.Equal(b.Mask) || a.MissingBlocks != b.MissingBlocks {
		t.Fatalf("coverage differs between builds")
	}
}

func TestBuildCoverageRejectsEmpty(t *testing.T) {
	if _, err := BuildCoverage("0xabc", nil, true); !errors.Is(err, ErrDataNotFound) {
		t.Fatalf("expected data not found, got %v", err)
	}
}
