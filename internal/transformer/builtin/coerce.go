package builtin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Coerce converts string cells to typed values.
//
// Types maps field -> one of: int, float, bool, date, string. A cell that
// fails to parse keeps its original string, or becomes nil when NullOnError
// is set (the to_numeric(errors="coerce") behavior). A field that is not a
// column of the table is an error unless Optional is set.
type Coerce struct {
	Types       map[string]string `json:"types"`
	Layout      string            `json:"layout"` // date layout
	NullOnError bool              `json:"null_on_error"`
	Optional    bool              `json:"optional"`
}

// Apply implements transformer.Transformer. Input records are not modified;
// changed rows are copied.
func (c Coerce) Apply(in *table.Table) (*table.Table, error) {
	if len(c.Types) == 0 {
		return in, nil
	}
	if !c.Optional {
		if err := in.RequireColumns(sortedKeys(c.Types)...); err != nil {
			return nil, fmt.Errorf("coerce: %w", err)
		}
	}
	out := make([]records.Record, len(in.Rows))
	for i, r := range in.Rows {
		var cp records.Record
		for field, typ := range c.Types {
			v, ok := r[field]
			if !ok || v == nil {
				continue
			}
			nv, changed := c.coerce(v, typ)
			if !changed {
				continue
			}
			if cp == nil {
				cp = r.Clone()
			}
			cp[field] = nv
		}
		if cp == nil {
			cp = r
		}
		out[i] = cp
	}
	return in.WithRows(out), nil
}

// coerce returns the converted value and whether it differs from v.
func (c Coerce) coerce(v any, typ string) (any, bool) {
	var (
		nv any
		ok bool
	)
	switch strings.ToLower(typ) {
	case "int", "integer":
		if _, already := v.(int); already {
			return v, false
		}
		nv, ok = ParseInt(v)
	case "float", "real", "double":
		if _, already := v.(float64); already {
			return v, false
		}
		nv, ok = ParseFloat(v)
	case "bool", "boolean":
		s, isStr := v.(string)
		if !isStr {
			return v, false
		}
		nv, ok = parseBool(s)
	case "date":
		s, isStr := v.(string)
		if !isStr {
			return v, false
		}
		if t, err := time.Parse(c.Layout, strings.TrimSpace(s)); err == nil {
			nv, ok = t, true
		}
	default:
		return v, false
	}
	if ok {
		return nv, true
	}
	if c.NullOnError {
		return nil, true
	}
	return v, false
}

func parseBool(s string) (bool, bool) {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b, true
	}
	// CSV exports write booleans as 1.0/0.0 once a column held a NaN.
	if f, err := strconv.ParseFloat(s, 64); err == nil && (f == 0 || f == 1) {
		return f == 1, true
	}
	return false, false
}

// sortedKeys keeps error messages stable across map iteration orders.
func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
