package builtin

import (
	"fmt"

	"povclean/internal/table"
)

// Select keeps Columns, in that order.
type Select struct {
	Columns []string `json:"columns"`
}

// Apply implements transformer.Transformer.
func (s Select) Apply(in *table.Table) (*table.Table, error) {
	out, err := in.Select(s.Columns...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}

// Rename renames columns (old -> new).
type Rename struct {
	Columns map[string]string `json:"columns"`
}

// Apply implements transformer.Transformer.
func (r Rename) Apply(in *table.Table) (*table.Table, error) {
	out, err := in.Rename(r.Columns)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	return out, nil
}

// Sort orders rows ascending by Keys with a stable sort.
type Sort struct {
	Keys []string `json:"keys"`
}

// Apply implements transformer.Transformer.
func (s Sort) Apply(in *table.Table) (*table.Table, error) {
	out, err := in.SortBy(s.Keys...)
	if err != nil {
		return nil, fmt.Errorf("sort: %w", err)
	}
	return out, nil
}
