package builtin

import (
	"fmt"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Require removes any record missing a value for any of Fields. With no
// Fields, every column is required (a full dropna).
type Require struct {
	Fields []string `json:"fields"`
}

// Apply implements transformer.Transformer.
func (r Require) Apply(in *table.Table) (*table.Table, error) {
	fields := r.Fields
	if len(fields) == 0 {
		fields = in.Columns
	} else if err := in.RequireColumns(fields...); err != nil {
		return nil, fmt.Errorf("require: %w", err)
	}
	return in.Filter(func(rec records.Record) bool {
		for _, f := range fields {
			if table.IsMissing(rec[f]) {
				return false
			}
		}
		return true
	}), nil
}
