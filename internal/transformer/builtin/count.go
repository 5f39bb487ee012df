package builtin

import (
	"fmt"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// CountBy groups rows by Keys and emits one row per group holding the key
// values and the group size (int) in As. Groups come out sorted by key, and
// rows with a missing key part are not counted.
type CountBy struct {
	Keys []string `json:"keys"`
	As   string   `json:"as"`
}

// Apply implements transformer.Transformer.
func (c CountBy) Apply(in *table.Table) (*table.Table, error) {
	if len(c.Keys) == 0 {
		return nil, fmt.Errorf("count: no keys")
	}
	if err := in.RequireColumns(c.Keys...); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	as := orDefault(c.As, "count")

	groups := make(map[string]records.Record)
	var order []string
	for _, r := range in.Rows {
		key, ok := table.Key(r, c.Keys)
		if !ok {
			continue
		}
		g, seen := groups[key]
		if !seen {
			g = make(records.Record, len(c.Keys)+1)
			for _, k := range c.Keys {
				g[k] = r[k]
			}
			g[as] = 0
			groups[key] = g
			order = append(order, key)
		}
		g[as] = g[as].(int) + 1
	}

	rows := make([]records.Record, 0, len(order))
	for _, k := range order {
		rows = append(rows, groups[k])
	}
	cols := append(append([]string{}, c.Keys...), as)
	return table.New(cols, rows).SortBy(c.Keys...)
}
