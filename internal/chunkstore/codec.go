package chunkstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// EncodeTable writes t as CSV: a header row with the key columns first, then
// one row per record.
func EncodeTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{ColBlockNumber, ColTransactionIndex, ColLogIndex}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(header))
	for _, rec := range t.Records {
		if len(rec.Values) != len(t.Columns) {
			return fmt.Errorf("%w: record %s has %d values for %d columns", ErrInvalidChunk, rec.Key, len(rec.Values), len(t.Columns))
		}
		row[0] = strconv.FormatUint(rec.Key.BlockNumber, 10)
		row[1] = strconv.FormatUint(rec.Key.TransactionIndex, 10)
		row[2] = strconv.FormatUint(rec.Key.LogIndex, 10)
		copy(row[3:], rec.Values)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", rec.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeTable reads a CSV chunk. The key columns may appear anywhere in the
// header. Columns with an empty name (a serialized row index) are dropped.
func DecodeTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty chunk file", ErrInvalidChunk)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidChunk, err)
	}

	keyPos := map[string]int{ColBlockNumber: -1, ColTransactionIndex: -1, ColLogIndex: -1}
	t := &Table{}
	var valuePos []int
	seen := map[string]struct{}{}
	for i, name := range header {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidChunk, name)
		}
		seen[name] = struct{}{}
		if _, isKey := keyPos[name]; isKey {
			keyPos[name] = i
			continue
		}
		t.Columns = append(t.Columns, name)
		valuePos = append(valuePos, i)
	}
	for _, name := range []string{ColBlockNumber, ColTransactionIndex, ColLogIndex} {
		if keyPos[name] < 0 {
			return nil, fmt.Errorf("%w: missing key column %q", ErrInvalidChunk, name)
		}
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read row: %v", ErrInvalidChunk, err)
		}
		line++

		var key Key
		if key.BlockNumber, err = parseKeyField(row, keyPos[ColBlockNumber]); err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %v", ErrInvalidChunk, line, ColBlockNumber, err)
		}
		if key.TransactionIndex, err = parseKeyField(row, keyPos[ColTransactionIndex]); err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %v", ErrInvalidChunk, line, ColTransactionIndex, err)
		}
		if key.LogIndex, err = parseKeyField(row, keyPos[ColLogIndex]); err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %v", ErrInvalidChunk, line, ColLogIndex, err)
		}

		values := make([]string, len(valuePos))
		for j, p := range valuePos {
			values[j] = row[p]
		}
		t.Records = append(t.Records, Record{Key: key, Values: values})
	}
	return t, nil
}

func parseKeyField(row []string, pos int) (uint64, error) {
	return strconv.ParseUint(row[pos], 10, 64)
}
