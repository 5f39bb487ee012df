// Package table provides the in-memory tabular value that flows through the
// cleaning pipeline: an ordered list of column names plus a slice of records.
//
// Tables are treated as immutable snapshots. Every operation in this package
// returns a new *Table and never modifies the receiver or its records, so a
// table read from disk can be shared between steps without copying.
package table

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"povclean/pkg/records"
)

// ErrMissingColumn is returned when an operation references a column the
// table does not have. It marks a schema mismatch between the pipeline
// configuration and the input data.
var ErrMissingColumn = errors.New("missing column")

// Table is an ordered-column collection of records.
type Table struct {
	Columns []string
	Rows    []records.Record
}

// New returns a table with a private copy of columns. Rows are used as-is.
func New(columns []string, rows []records.Record) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	if rows == nil {
		rows = []records.Record{}
	}
	return &Table{Columns: cols, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of col in the column list, or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether the table has a column named col.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// RequireColumns returns an ErrMissingColumn error naming the first column in
// cols that the table lacks.
func (t *Table) RequireColumns(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return fmt.Errorf("%w: %q (have: %s)", ErrMissingColumn, c, strings.Join(t.Columns, ", "))
		}
	}
	return nil
}

// Values returns the values of col in row order.
func (t *Table) Values(col string) []any {
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out
}

// Row returns the values of row i ordered like t.Columns.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = t.Rows[i][c]
	}
	return out
}

// WithRows returns a table with the same columns and the given rows.
func (t *Table) WithRows(rows []records.Record) *Table {
	return New(t.Columns, rows)
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(records.Record) bool) *Table {
	out := make([]records.Record, 0, len(t.Rows))
	for _, r := range t.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return t.WithRows(out)
}

// Head returns at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return t.WithRows(t.Rows[:n])
}

// Tail returns at most the last n rows.
func (t *Table) Tail(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return t.WithRows(t.Rows[len(t.Rows)-n:])
}

// Select projects the table onto cols, in that order.
func (t *Table) Select(cols ...string) (*Table, error) {
	if err := t.RequireColumns(cols...); err != nil {
		return nil, err
	}
	out := make([]records.Record, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(records.Record, len(cols))
		for _, c := range cols {
			nr[c] = r[c]
		}
		out[i] = nr
	}
	return New(cols, out), nil
}

// Rename returns a table whose columns are renamed according to m
// (old name -> new name). Columns not in m keep their name.
func (t *Table) Rename(m map[string]string) (*Table, error) {
	for old := range m {
		if err := t.RequireColumns(old); err != nil {
			return nil, err
		}
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if n, ok := m[c]; ok && n != "" {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	out := make([]records.Record, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(records.Record, len(cols))
		for j, c := range t.Columns {
			nr[cols[j]] = r[c]
		}
		out[i] = nr
	}
	return New(cols, out), nil
}

// SortBy returns the rows ordered ascending by keys. The sort is stable, so
// rows with equal keys keep their input order. Missing values sort last.
func (t *Table) SortBy(keys ...string) (*Table, error) {
	if err := t.RequireColumns(keys...); err != nil {
		return nil, err
	}
	rows := make([]records.Record, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			if c := Compare(rows[i][k], rows[j][k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return t.WithRows(rows), nil
}
