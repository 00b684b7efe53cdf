// Package report renders human-readable views of the chunk store.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/devblac/eventvault/internal/chunkstore"
	"github.com/dustin/go-humanize"
)

// Summary prints every contract, its events, their stored block range, and disk usage.
// Events with gaps are listed; overlapping chunks fail the summary.
func Summary(ctx context.Context, w io.Writer, s *chunkstore.Store) error {
	all, err := s.ListAllContractEvents(ctx, chunkstore.Filter{AllowMissingBlocks: true})
	if err != nil {
		return err
	}
	contracts := make([]string, 0, len(all))
	for c := range all {
		contracts = append(contracts, c)
	}
	sort.Strings(contracts)

	fmt.Fprintf(w, "## Contracts (%d)\n", len(contracts))
	for _, c := range contracts {
		catalog := all[c]
		fmt.Fprintf(w, "- %s (%d events)\n", c, len(catalog))
		for _, hash := range catalog.Hashes() {
			ev := catalog[hash]
			r := ev.Coverage.Range()
			size, err := ev.Size()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "    - %s [%d, %d] (%s in %d files)\n",
				ShortHash(hash), r.Start, r.End, humanize.Bytes(uint64(size)), len(ev.Paths))
		}
	}
	return nil
}

// NameFunc resolves an event hash to a display name; ok is false when unknown.
type NameFunc func(contract, hash string) (name string, ok bool)

// Coverage prints the chunk coverage of one contract's events, listing every gap.
func Coverage(ctx context.Context, w io.Writer, s *chunkstore.Store, contract string, names NameFunc) error {
	contract = chunkstore.NormalizeAddress(contract)
	catalog, err := s.ListContractEvents(ctx, contract, chunkstore.Filter{AllowMissingBlocks: true})
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		fmt.Fprintf(w, "no events stored for %s\n", contract)
		return nil
	}

	fmt.Fprintf(w, "## %s (%d events)\n", contract, len(catalog))
	for _, hash := range catalog.Hashes() {
		ev := catalog[hash]
		cov := ev.Coverage
		r := cov.Range()

		label := hash
		if names != nil {
			if name, ok := names(contract, hash); ok {
				label = name + " " + ShortHash(hash)
			}
		}
		fmt.Fprintf(w, "- %s\n", label)
		fmt.Fprintf(w, "    blocks:  [%d, %d] (%s blocks)\n", r.Start, r.End, humanize.Comma(int64(cov.Len())))
		fmt.Fprintf(w, "    files:   %d\n", len(ev.Paths))
		if !cov.MissingBlocks {
			fmt.Fprintf(w, "    missing: none\n")
			continue
		}
		gaps := cov.Gaps()
		parts := make([]string, 0, len(gaps))
		for _, g := range gaps {
			parts = append(parts, g.String())
		}
		fmt.Fprintf(w, "    missing: %s blocks in %d gaps: %s\n",
			humanize.Comma(int64(cov.MissingCount())), len(gaps), strings.Join(parts, " "))
	}
	return nil
}

// ShortHash abbreviates a hash to its first and last six characters.
func ShortHash(hash string) string {
	if len(hash) <= 15 {
		return hash
	}
	return hash[:6] + "..." + hash[len(hash)-6:]
}
