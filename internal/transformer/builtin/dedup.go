package builtin

import (
	"fmt"
	"sort"
	"strings"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// DeDup collapses records sharing the same key and keeps one winner according
// to Policy:
//
//   - "keep-first"   : the earliest occurrence
//   - "keep-last"    : the latest occurrence (default)
//   - "most-complete": the record with the most non-missing fields; ties go
//     to the later record
//
// Winners keep the relative order of their positions in the input. Records
// whose key has a missing part pass through unchanged after the winners.
type DeDup struct {
	Keys   []string `json:"keys"`
	Policy string   `json:"policy"`
}

// Apply implements transformer.Transformer.
func (d DeDup) Apply(in *table.Table) (*table.Table, error) {
	if in.Len() == 0 || len(d.Keys) == 0 {
		return in, nil
	}
	if err := in.RequireColumns(d.Keys...); err != nil {
		return nil, fmt.Errorf("dedupe: %w", err)
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-last"
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, in.Len())
	var passthrough []records.Record

	for i, r := range in.Rows {
		key, ok := table.Key(r, d.Keys)
		if !ok {
			passthrough = append(passthrough, r)
			continue
		}
		prev, exists := winners[key]
		switch policy {
		case "keep-first":
			if !exists {
				winners[key] = slot{index: i}
			}
		case "most-complete":
			s := slot{index: i, score: completeness(r)}
			if !exists || s.score >= prev.score {
				winners[key] = s
			}
		default:
			winners[key] = slot{index: i}
		}
	}

	indexes := make([]int, 0, len(winners))
	for _, s := range winners {
		indexes = append(indexes, s.index)
	}
	sort.Ints(indexes)

	out := make([]records.Record, 0, len(indexes)+len(passthrough))
	for _, idx := range indexes {
		out = append(out, in.Rows[idx])
	}
	out = append(out, passthrough...)
	return in.WithRows(out), nil
}

func completeness(r records.Record) int {
	n := 0
	for _, v := range r {
		if !table.IsMissing(v) {
			n++
		}
	}
	return n
}
