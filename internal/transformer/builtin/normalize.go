package builtin

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Normalize trims string cells, repairs the UTF-8 no-break space that shows up
// as "Â " after a Latin-1 round trip, and applies Unicode NFC so that names
// like "Côte d'Ivoire" compare equal across sources. With no Fields every
// string cell is normalized.
type Normalize struct {
	Fields []string `json:"fields"`
}

// Apply implements transformer.Transformer.
func (n Normalize) Apply(in *table.Table) (*table.Table, error) {
	fields := n.Fields
	if len(fields) == 0 {
		fields = in.Columns
	}
	out := make([]records.Record, len(in.Rows))
	for i, r := range in.Rows {
		var cp records.Record
		for _, f := range fields {
			s, ok := r[f].(string)
			if !ok {
				continue
			}
			ns := NormalizeString(s)
			if ns == s {
				continue
			}
			if cp == nil {
				cp = r.Clone()
			}
			if ns == "" {
				cp[f] = nil
			} else {
				cp[f] = ns
			}
		}
		if cp == nil {
			cp = r
		}
		out[i] = cp
	}
	return in.WithRows(out), nil
}

// NormalizeString applies the Normalize rules to a single value.
func NormalizeString(s string) string {
	s = strings.ReplaceAll(s, "\u00c2\u00a0", " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return norm.NFC.String(strings.TrimSpace(s))
}
