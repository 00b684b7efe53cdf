package chunkstore

import (
	"fmt"
	"sort"
	"strconv"
)

// Key columns present in every chunk file.
const (
	ColBlockNumber      = "block_number"
	ColTransactionIndex = "transaction_index"
	ColLogIndex         = "log_index"
)

// ArgPrefix prefixes columns holding decoded event arguments.
const ArgPrefix = "arg__"

// ArgColumn returns the column name of an event argument.
func ArgColumn(name string) string {
	return ArgPrefix + name
}

// Key identifies a log within an event's history and defines sort order.
type Key struct {
	BlockNumber      uint64
	TransactionIndex uint64
	LogIndex         uint64
}

// Compare orders keys by block, transaction index, then log index.
func (k Key) Compare(o Key) int {
	switch {
	case k.BlockNumber != o.BlockNumber:
		return cmpUint(k.BlockNumber, o.BlockNumber)
	case k.TransactionIndex != o.TransactionIndex:
		return cmpUint(k.TransactionIndex, o.TransactionIndex)
	default:
		return cmpUint(k.LogIndex, o.LogIndex)
	}
}

func (k Key) String() string {
	return fmt.Sprintf("(%d, %d, %d)", k.BlockNumber, k.TransactionIndex, k.LogIndex)
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Record is one stored log. Values align with the owning table's Columns.
type Record struct {
	Key    Key
	Values []string
}

// Table is an ordered set of records sharing the same non-key columns.
type Table struct {
	Columns []string
	Records []Record
}

// NewTable returns an empty table with the given non-key columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Append adds a record; values must match Columns one to one.
func (t *Table) Append(key Key, values ...string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("%w: record %s has %d values for %d columns", ErrInvalidChunk, key, len(values), len(t.Columns))
	}
	t.Records = append(t.Records, Record{Key: key, Values: append([]string(nil), values...)})
	return nil
}

// ColumnIndex returns the position of a non-key column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Row renders record i as a column → value map including the key columns.
func (t *Table) Row(i int) map[string]string {
	rec := t.Records[i]
	row := make(map[string]string, len(t.Columns)+3)
	row[ColBlockNumber] = strconv.FormatUint(rec.Key.BlockNumber, 10)
	row[ColTransactionIndex] = strconv.FormatUint(rec.Key.TransactionIndex, 10)
	row[ColLogIndex] = strconv.FormatUint(rec.Key.LogIndex, 10)
	for j, c := range t.Columns {
		row[c] = rec.Values[j]
	}
	return row
}

// SortByKey orders records by key. Equal keys keep their input order.
func (t *Table) SortByKey() {
	sort.SliceStable(t.Records, func(i, j int) bool {
		return t.Records[i].Key.Compare(t.Records[j].Key) < 0
	})
}

// DuplicateKeys lists keys appearing more than once. The table must be sorted.
func (t *Table) DuplicateKeys() []Key {
	var dups []Key
	for i := 1; i < len(t.Records); i++ {
		k := t.Records[i].Key
		if k == t.Records[i-1].Key && (len(dups) == 0 || dups[len(dups)-1] != k) {
			dups = append(dups, k)
		}
	}
	return dups
}

// Filter keeps the records for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) {
	out := t.Records[:0]
	for i := range t.Records {
		if keep(i) {
			out = append(out, t.Records[i])
		}
	}
	t.Records = out
}

// TrimBlocks keeps records whose block lies in [start, end]; nil bounds are open.
func (t *Table) TrimBlocks(start, end *uint64) {
	t.Filter(func(i int) bool {
		b := t.Records[i].Key.BlockNumber
		if start != nil && b < *start {
			return false
		}
		if end != nil && b > *end {
			return false
		}
		return true
	})
}

// Concat joins tables in order. Columns are the union of all inputs in
// first-seen order; values absent from a source table are empty.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	pos := map[string]int{}
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, t := range tables {
		idx := make([]int, len(t.Columns))
		for j, c := range t.Columns {
			idx[j] = pos[c]
		}
		for _, rec := range t.Records {
			values := make([]string, len(out.Columns))
			for j, v := range rec.Values {
				values[idx[j]] = v
			}
			out.Records = append(out.Records, Record{Key: rec.Key, Values: values})
		}
	}
	return out
}
