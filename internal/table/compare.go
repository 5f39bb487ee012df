package table

import "strings"

// Compare orders two cell values. Numbers compare numerically regardless of
// their Go type, strings lexically, bools false before true. Across kinds the
// order is number < string < bool < other, and missing values (nil, "" and
// NaN, see IsMissing) sort after everything, matching the "missing last"
// convention of the exports.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNumber:
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	return 0
}

const (
	rankNumber = iota
	rankString
	rankBool
	rankOther
	rankMissing
)

func rank(v any) int {
	if IsMissing(v) {
		return rankMissing
	}
	if _, ok := AsFloat(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	}
	return rankOther
}

// AsFloat converts the numeric Go types produced by the pipeline to float64.
// It does not parse strings.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
