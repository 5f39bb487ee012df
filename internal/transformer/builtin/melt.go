package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Melt reshapes a wide table (one column per year) into a long table with one
// row per (id columns..., year, value).
//
// Year column names become ints in VarName. Cell values become float64 in
// ValueName; cells that are missing or not numeric (World Bank uses ".." as a
// placeholder) are dropped rather than kept as nulls. Melt never fails on a
// bad value, only on a bad schema.
type Melt struct {
	// IDColumns are carried into every output row.
	IDColumns []string `json:"id_columns"`
	// ValueColumns lists the year columns to unpivot, in order. When empty,
	// every column whose name parses as an integer is used.
	ValueColumns []string `json:"value_columns"`
	// VarName is the output year column. Default "Year".
	VarName string `json:"var_name"`
	// ValueName is the output value column. Default "value".
	ValueName string `json:"value_name"`
}

// YearColumns returns the columns whose names parse as integers, in order.
func YearColumns(cols []string) []string {
	var out []string
	for _, c := range cols {
		if _, err := strconv.Atoi(strings.TrimSpace(c)); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// YearRange returns the column names "from".."to" inclusive.
func YearRange(from, to int) []string {
	if to < from {
		return nil
	}
	out := make([]string, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, strconv.Itoa(y))
	}
	return out
}

// Apply implements transformer.Transformer.
func (m Melt) Apply(in *table.Table) (*table.Table, error) {
	varName := orDefault(m.VarName, "Year")
	valueName := orDefault(m.ValueName, "value")

	if err := in.RequireColumns(m.IDColumns...); err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}
	valueCols := m.ValueColumns
	if len(valueCols) == 0 {
		valueCols = YearColumns(in.Columns)
	} else if err := in.RequireColumns(valueCols...); err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}

	years := make([]int, len(valueCols))
	for i, c := range valueCols {
		y, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("melt: value column %q is not a year", c)
		}
		years[i] = y
	}

	cols := make([]string, 0, len(m.IDColumns)+2)
	cols = append(cols, m.IDColumns...)
	cols = append(cols, varName, valueName)

	// Column-major like a dataframe melt: all rows for the first year, then
	// the next year.
	out := make([]records.Record, 0, in.Len())
	for i, c := range valueCols {
		for _, r := range in.Rows {
			v, ok := ParseFloat(r[c])
			if !ok {
				continue
			}
			rec := make(records.Record, len(cols))
			for _, id := range m.IDColumns {
				rec[id] = r[id]
			}
			rec[varName] = years[i]
			rec[valueName] = v
			out = append(out, rec)
		}
	}
	return table.New(cols, out), nil
}

// ParseFloat coerces a cell to float64. Strings are trimmed and parsed;
// anything unparsable, missing or NaN reports ok=false.
func ParseFloat(v any) (float64, bool) {
	if f, ok := table.AsFloat(v); ok {
		return f, !math.IsNaN(f)
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseInt coerces a cell to int. Integral floats such as "2010.0" are
// accepted; anything else reports ok=false.
func ParseInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	if s, isStr := v.(string); isStr {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	f, ok := ParseFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
