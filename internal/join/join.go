// Package join combines two cleaned long tables that share an (entity, year)
// style compound key.
package join

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Options controls Inner.
type Options struct {
	// On lists the key columns present in both tables.
	On []string
	// DropMissing removes joined rows that still hold a missing value in any
	// column.
	DropMissing bool
}

// Inner returns the inner join of left and right on opts.On. Output columns
// are the left columns followed by the right non-key columns; a right column
// whose name collides with a left non-key column gets a "_right" suffix.
//
// Rows are emitted in left order, and for each left row in right order.
// Keys present on only one side are dropped, so an empty result is a normal
// outcome for datasets with little overlap.
func Inner(left, right *table.Table, opts Options) (*table.Table, error) {
	if len(opts.On) == 0 {
		return nil, fmt.Errorf("join: no key columns")
	}
	if err := left.RequireColumns(opts.On...); err != nil {
		return nil, fmt.Errorf("join: left: %w", err)
	}
	if err := right.RequireColumns(opts.On...); err != nil {
		return nil, fmt.Errorf("join: right: %w", err)
	}

	isKey := make(map[string]bool, len(opts.On))
	for _, k := range opts.On {
		isKey[k] = true
	}
	cols := append([]string{}, left.Columns...)
	rename := make(map[string]string)
	for _, c := range right.Columns {
		if isKey[c] {
			continue
		}
		name := c
		if left.Has(c) {
			name = c + "_right"
		}
		rename[c] = name
		cols = append(cols, name)
	}

	idx := newIndex(right, opts.On)
	var out []records.Record
	for _, l := range left.Rows {
		key, ok := table.Key(l, opts.On)
		if !ok {
			continue
		}
		for _, ri := range idx.lookup(key) {
			r := right.Rows[ri]
			rec := make(records.Record, len(cols))
			for _, c := range left.Columns {
				rec[c] = l[c]
			}
			for src, dst := range rename {
				rec[dst] = r[src]
			}
			if opts.DropMissing && hasMissing(rec, cols) {
				continue
			}
			out = append(out, rec)
		}
	}
	return table.New(cols, out), nil
}

func hasMissing(r records.Record, cols []string) bool {
	for _, c := range cols {
		if table.IsMissing(r[c]) {
			return true
		}
	}
	return false
}

// index buckets row positions by the xxh3 hash of their key. Buckets keep the
// full key so hash collisions never merge distinct keys.
type index struct {
	buckets map[uint64][]entry
}

type entry struct {
	key  string
	rows []int
}

func newIndex(t *table.Table, on []string) *index {
	ix := &index{buckets: make(map[uint64][]entry, t.Len())}
	for i, r := range t.Rows {
		key, ok := table.Key(r, on)
		if !ok {
			continue
		}
		h := xxh3.HashString(key)
		bucket := ix.buckets[h]
		found := false
		for j := range bucket {
			if bucket[j].key == key {
				bucket[j].rows = append(bucket[j].rows, i)
				found = true
				break
			}
		}
		if !found {
			bucket = append(bucket, entry{key: key, rows: []int{i}})
		}
		ix.buckets[h] = bucket
	}
	return ix
}

func (ix *index) lookup(key string) []int {
	for _, e := range ix.buckets[xxh3.HashString(key)] {
		if e.key == key {
			return e.rows
		}
	}
	return nil
}
