package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"povclean/pkg/records"
)

// keySep separates the parts of a compound key.
const keySep = '\x1f'

// Key builds a compound key string from the values of cols in r. Numeric
// values are rendered canonically, so the int 2010 and the float 2010.0 yield
// the same key. ok is false when any part is missing.
func Key(r records.Record, cols []string) (key string, ok bool) {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(keySep)
		}
		v := r[c]
		if IsMissing(v) {
			return "", false
		}
		if f, isNum := AsFloat(v); isNum {
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			continue
		}
		switch t := v.(type) {
		case string:
			b.WriteString(t)
		default:
			b.WriteString(fmt.Sprint(t))
		}
	}
	return b.String(), true
}

// IsMissing reports whether v counts as a missing cell: nil, the empty
// string, or a NaN float.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	}
	return false
}
