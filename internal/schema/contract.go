// Package schema describes the expected shape of a cleaned output table and
// checks tables against it before they are written.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"povclean/internal/table"
)

// ErrContract is returned when a table's values do not match its contract.
var ErrContract = errors.New("contract violation")

// Field describes one output column.
type Field struct {
	Name string `json:"name"`
	// Type is one of "int", "float", "text", "bool". Empty means any.
	Type string `json:"type,omitempty"`
	// Nullable allows missing values in the column.
	Nullable bool `json:"nullable,omitempty"`
}

// Contract is the ordered list of fields an output must carry.
type Contract struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Columns returns the field names in order.
func (c Contract) Columns() []string {
	out := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = f.Name
	}
	return out
}

// Check verifies that t has every contract column and that each value has
// the declared type. A missing column wraps table.ErrMissingColumn; a bad
// value wraps ErrContract and names the first offending row (1-based).
func (c Contract) Check(t *table.Table) error {
	if err := t.RequireColumns(c.Columns()...); err != nil {
		return fmt.Errorf("contract %s: %w", c.Name, err)
	}
	for i, r := range t.Rows {
		for _, f := range c.Fields {
			v := r[f.Name]
			if table.IsMissing(v) {
				if !f.Nullable {
					return fmt.Errorf("%w: contract %s: row %d: %s is missing", ErrContract, c.Name, i+1, f.Name)
				}
				continue
			}
			if !typeMatches(f.Type, v) {
				return fmt.Errorf("%w: contract %s: row %d: %s=%v is %T, want %s", ErrContract, c.Name, i+1, f.Name, v, v, f.Type)
			}
		}
	}
	return nil
}

func typeMatches(typ string, v any) bool {
	switch strings.ToLower(typ) {
	case "":
		return true
	case "int", "integer":
		switch v.(type) {
		case int, int64, int32:
			return true
		}
		return false
	case "float", "real", "double":
		_, ok := table.AsFloat(v)
		return ok
	case "text", "string":
		_, ok := v.(string)
		return ok
	case "bool", "boolean":
		_, ok := v.(bool)
		return ok
	}
	return false
}
