// Package report turns a finished pipeline run into the human-readable
// summary the cleaning executables print to stdout.
package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"povclean/internal/config"
	"povclean/internal/table"
	"povclean/internal/transformer/builtin"
)

const welfareColumn = "welfare_type"

// EntityCoverage is the year span of one entity.
type EntityCoverage struct {
	Entity string
	First  int
	Last   int
	Years  int
}

// YearCount is the number of entities with data in one year, plus which of
// the sample entities are among them.
type YearCount struct {
	Year     int
	Entities int
	Samples  []string
}

// ValueRange is the observed range of a numeric column.
type ValueRange struct {
	Column string
	Min    float64
	Max    float64
	N      int
}

// DecileRow is the decile distribution of the most recent row, in percent.
// Missing shares are NaN.
type DecileRow struct {
	Year        int
	WelfareType string
	Shares      []float64
}

// Summary holds the figures of a run summary. Sections whose option is unset
// stay empty.
type Summary struct {
	Rows     int
	Entities int

	HasYears bool
	YearMin  int
	YearMax  int
	// Years lists the distinct years, ascending.
	Years []int

	Coverage   []EntityCoverage
	YearCounts []YearCount
	Ranges     []ValueRange
	Latest     *DecileRow
}

// Summarize computes the summary figures of t as configured by opts. Columns
// named in opts but absent from t are skipped.
func Summarize(t *table.Table, opts config.Report) Summary {
	s := Summary{Rows: t.Len()}
	entityOK := opts.EntityColumn != "" && t.Has(opts.EntityColumn)
	yearOK := opts.YearColumn != "" && t.Has(opts.YearColumn)

	if entityOK {
		s.Entities = len(distinctEntities(t, opts.EntityColumn))
	}
	if yearOK {
		s.Years = distinctYears(t, opts.YearColumn)
		if len(s.Years) > 0 {
			s.HasYears = true
			s.YearMin, s.YearMax = s.Years[0], s.Years[len(s.Years)-1]
		}
	}
	if entityOK && yearOK {
		s.Coverage = coverage(t, opts)
		if opts.YearCounts > 0 {
			s.YearCounts = yearCounts(t, opts)
		}
	}
	for _, c := range opts.RangeColumns {
		if r, ok := valueRange(t, c); ok {
			s.Ranges = append(s.Ranges, r)
		}
	}
	if opts.Deciles != "" && yearOK {
		s.Latest = latestDeciles(t, opts.YearColumn, opts.Deciles)
	}
	return s
}

func entityOf(v any) (string, bool) {
	if table.IsMissing(v) {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func distinctEntities(t *table.Table, col string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range t.Rows {
		e, ok := entityOf(r[col])
		if !ok || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

func distinctYears(t *table.Table, col string) []int {
	set := make(map[int]struct{})
	for _, r := range t.Rows {
		if y, ok := builtin.ParseInt(r[col]); ok {
			set[y] = struct{}{}
		}
	}
	years := lo.Keys(set)
	sort.Ints(years)
	return years
}

// coverage reports the sample entities in the given order, or the first
// CoverageLimit entities of the table.
func coverage(t *table.Table, opts config.Report) []EntityCoverage {
	entities := opts.SampleEntities
	if len(entities) == 0 {
		if opts.CoverageLimit <= 0 {
			return nil
		}
		entities = distinctEntities(t, opts.EntityColumn)
		if len(entities) > opts.CoverageLimit {
			entities = entities[:opts.CoverageLimit]
		}
	}

	byEntity := make(map[string]map[int]struct{}, len(entities))
	for _, e := range entities {
		byEntity[e] = make(map[int]struct{})
	}
	for _, r := range t.Rows {
		e, ok := entityOf(r[opts.EntityColumn])
		if !ok {
			continue
		}
		years, tracked := byEntity[e]
		if !tracked {
			continue
		}
		if y, ok := builtin.ParseInt(r[opts.YearColumn]); ok {
			years[y] = struct{}{}
		}
	}

	out := make([]EntityCoverage, 0, len(entities))
	for _, e := range entities {
		ys := lo.Keys(byEntity[e])
		c := EntityCoverage{Entity: e, Years: len(ys)}
		if len(ys) > 0 {
			c.First, c.Last = lo.Min(ys), lo.Max(ys)
		}
		out = append(out, c)
	}
	return out
}

// yearCounts returns the YearCounts most recent years, newest first.
func yearCounts(t *table.Table, opts config.Report) []YearCount {
	entities := make(map[int]map[string]struct{})
	for _, r := range t.Rows {
		y, ok := builtin.ParseInt(r[opts.YearColumn])
		if !ok {
			continue
		}
		e, ok := entityOf(r[opts.EntityColumn])
		if !ok {
			continue
		}
		if entities[y] == nil {
			entities[y] = make(map[string]struct{})
		}
		entities[y][e] = struct{}{}
	}

	years := lo.Keys(entities)
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	if len(years) > opts.YearCounts {
		years = years[:opts.YearCounts]
	}
	out := make([]YearCount, 0, len(years))
	for _, y := range years {
		yc := YearCount{Year: y, Entities: len(entities[y])}
		for _, e := range opts.SampleEntities {
			if _, ok := entities[y][e]; ok {
				yc.Samples = append(yc.Samples, e)
			}
		}
		out = append(out, yc)
	}
	return out
}

func valueRange(t *table.Table, col string) (ValueRange, bool) {
	if !t.Has(col) {
		return ValueRange{}, false
	}
	r := ValueRange{Column: col, Min: math.Inf(1), Max: math.Inf(-1)}
	for _, row := range t.Rows {
		f, ok := builtin.ParseFloat(row[col])
		if !ok {
			continue
		}
		r.Min = math.Min(r.Min, f)
		r.Max = math.Max(r.Max, f)
		r.N++
	}
	return r, r.N > 0
}

// latestDeciles picks the last row holding the highest year. The table is
// usually sorted by year already, so that is the final row.
func latestDeciles(t *table.Table, yearCol, prefix string) *DecileRow {
	best := -1
	bestYear := math.MinInt
	for i, r := range t.Rows {
		y, ok := builtin.ParseInt(r[yearCol])
		if ok && y >= bestYear {
			best, bestYear = i, y
		}
	}
	if best < 0 {
		return nil
	}
	row := t.Rows[best]
	d := &DecileRow{Year: bestYear}
	if w, ok := row[welfareColumn].(string); ok {
		d.WelfareType = w
	}
	for i := 1; i <= 10; i++ {
		col := fmt.Sprintf("%s%d", prefix, i)
		if !t.Has(col) {
			break
		}
		share := math.NaN()
		if f, ok := builtin.ParseFloat(row[col]); ok {
			share = f * 100
		}
		d.Shares = append(d.Shares, share)
	}
	return d
}
