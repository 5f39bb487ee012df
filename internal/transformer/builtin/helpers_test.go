package builtin

import (
	"fmt"
	"math"

	"povclean/internal/table"
)

func nan() float64 { return math.NaN() }

// codes renders column col of every row, in order.
func codes(t *table.Table, col string) []string {
	out := make([]string, 0, t.Len())
	for _, r := range t.Rows {
		out = append(out, fmt.Sprint(r[col]))
	}
	return out
}
