package chunkstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// maxCoverageSpan bounds the mask allocation (one bit per block).
const maxCoverageSpan = 1 << 32

// BlockRange is a closed interval of block numbers.
type BlockRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	return r.End - r.Start + 1
}

// Contains reports whether block lies in the range.
func (r BlockRange) Contains(block uint64) bool {
	return block >= r.Start && block <= r.End
}

// Overlaps reports whether the two ranges share a block.
func (r BlockRange) Overlaps(o BlockRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Start, r.End)
}

// Coverage is the occupancy model of one event's chunks over the half-open
// span [MinBlock, MaxBlock). Bit i of Mask is set when block MinBlock+i is
// held by a chunk.
type Coverage struct {
	EventHash     string
	MinBlock      uint64
	MaxBlock      uint64
	Mask          *bitset.BitSet
	MissingBlocks bool
}

// Len returns the number of blocks spanned.
func (c *Coverage) Len() uint64 {
	return c.MaxBlock - c.MinBlock
}

// Range returns the spanned blocks as a closed interval.
func (c *Coverage) Range() BlockRange {
	return BlockRange{Start: c.MinBlock, End: c.MaxBlock - 1}
}

// Covered reports whether a chunk holds block.
func (c *Coverage) Covered(block uint64) bool {
	if block < c.MinBlock || block >= c.MaxBlock {
		return false
	}
	return c.Mask.Test(uint(block - c.MinBlock))
}

// MissingCount returns the number of spanned blocks no chunk holds.
func (c *Coverage) MissingCount() uint64 {
	return c.Len() - uint64(c.Mask.Count())
}

// Gaps lists the absent block ranges in ascending order.
func (c *Coverage) Gaps() []BlockRange {
	var gaps []BlockRange
	n := uint(c.Len())
	i := uint(0)
	for i < n {
		from, ok := c.Mask.NextClear(i)
		if !ok || from >= n {
			break
		}
		to, ok := c.Mask.NextSet(from)
		if !ok || to > n {
			to = n
		}
		gaps = append(gaps, BlockRange{
			Start: c.MinBlock + uint64(from),
			End:   c.MinBlock + uint64(to) - 1,
		})
		i = to
	}
	return gaps
}

// GapsWithin lists the absent block ranges clipped to r.
func (c *Coverage) GapsWithin(r BlockRange) []BlockRange {
	var out []BlockRange
	for _, g := range c.Gaps() {
		if !g.Overlaps(r) {
			continue
		}
		out = append(out, BlockRange{Start: max(g.Start, r.Start), End: min(g.End, r.End)})
	}
	return out
}

// BuildCoverage counts every chunk's blocks into a mask spanning
// [min(starts), max(ends)+1). A block counted twice fails with
// ErrOverlappingChunks. Uncovered blocks fail with ErrMissingBlocks unless
// allowMissing is set, in which case MissingBlocks reports them.
func BuildCoverage(eventHash string, ranges []BlockRange, allowMissing bool) (*Coverage, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: event %s has no chunks", ErrDataNotFound, eventHash)
	}

	sorted := make([]BlockRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	minBlock := sorted[0].Start
	var maxEnd uint64
	for _, r := range sorted {
		if r.Start > r.End {
			return nil, fmt.Errorf("%w: event %s: range %s is inverted", ErrInvalidChunk, eventHash, r)
		}
		if r.End > maxEnd {
			maxEnd = r.End
		}
	}
	if maxEnd == math.MaxUint64 {
		return nil, fmt.Errorf("%w: event %s: end block out of range", ErrInvalidChunk, eventHash)
	}
	maxBlock := maxEnd + 1
	span := maxBlock - minBlock
	if maxEnd-minBlock >= maxCoverageSpan {
		return nil, fmt.Errorf("%w: event %s spans %d blocks", ErrInvalidChunk, eventHash, maxEnd-minBlock+1)
	}

	mask := bitset.New(uint(span))
	for _, r := range sorted {
		for b := r.Start - minBlock; b <= r.End-minBlock; b++ {
			if mask.Test(uint(b)) {
				return nil, fmt.Errorf("%w: event %s: block %d held by more than one chunk", ErrOverlappingChunks, eventHash, minBlock+b)
			}
			mask.Set(uint(b))
		}
	}

	cov := &Coverage{
		EventHash:     eventHash,
		MinBlock:      minBlock,
		MaxBlock:      maxBlock,
		Mask:          mask,
		MissingBlocks: uint64(mask.Count()) != span,
	}
	if cov.MissingBlocks && !allowMissing {
		return nil, fmt.Errorf("%w: event %s: %d of %d blocks in %s uncovered", ErrMissingBlocks, eventHash, cov.MissingCount(), span, cov.Range())
	}
	return cov, nil
}
