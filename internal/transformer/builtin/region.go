// Package builtin contains the reusable steps of the cleaning pipeline.
package builtin

import (
	"fmt"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Countries returns the set of entity codes in meta whose region is present.
// World Bank metadata leaves Region empty for aggregates such as "World" or
// "High income", so the result holds actual countries only. An empty set is
// not an error; callers decide what zero countries means for them.
func Countries(meta *table.Table, codeColumn, regionColumn string) (map[string]struct{}, error) {
	if err := meta.RequireColumns(codeColumn, regionColumn); err != nil {
		return nil, fmt.Errorf("country metadata: %w", err)
	}
	out := make(map[string]struct{}, meta.Len())
	for _, r := range meta.Rows {
		if table.IsMissing(r[regionColumn]) {
			continue
		}
		code, ok := r[codeColumn].(string)
		if !ok || code == "" {
			continue
		}
		out[code] = struct{}{}
	}
	return out, nil
}

// CountryFilter keeps the rows of a data table whose code is a country
// according to a metadata table.
type CountryFilter struct {
	// Metadata names the metadata table in the pipeline environment.
	Metadata string `json:"metadata"`
	// Field is the code column of the data table. Default "Country Code".
	Field string `json:"field"`
	// CodeColumn and RegionColumn locate the metadata columns.
	// Defaults "Country Code" and "Region".
	CodeColumn   string `json:"code_column"`
	RegionColumn string `json:"region_column"`

	meta *table.Table
}

// WithMetadata binds the metadata table used by Apply.
func (f CountryFilter) WithMetadata(meta *table.Table) CountryFilter {
	f.meta = meta
	return f
}

// Apply implements transformer.Transformer.
func (f CountryFilter) Apply(in *table.Table) (*table.Table, error) {
	if f.meta == nil {
		return nil, fmt.Errorf("country filter: metadata table %q not bound", f.Metadata)
	}
	field := orDefault(f.Field, "Country Code")
	if err := in.RequireColumns(field); err != nil {
		return nil, fmt.Errorf("country filter: %w", err)
	}
	codes, err := Countries(f.meta, orDefault(f.CodeColumn, "Country Code"), orDefault(f.RegionColumn, "Region"))
	if err != nil {
		return nil, err
	}
	return in.Filter(func(r records.Record) bool {
		code, ok := r[field].(string)
		if !ok {
			return false
		}
		_, keep := codes[code]
		return keep
	}), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
