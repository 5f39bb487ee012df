package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"povclean/internal/config"
	"povclean/internal/pipeline"
	"povclean/internal/storage/csvfile"
)

var heading = color.New(color.Bold)

func okMark() string   { return color.New(color.FgGreen).Sprint("✓") }
func warnMark() string { return color.New(color.FgYellow).Sprint("!") }
func failMark() string { return color.New(color.FgRed).Sprint("✗") }

// Write prints the summary of a successful run.
func Write(w io.Writer, res *pipeline.Result, opts config.Report) {
	s := Summarize(res.Table, opts)

	fmt.Fprintf(w, "%s %s: %s rows written to %s in %s\n",
		okMark(), res.Job, humanize.Comma(int64(s.Rows)), res.Output, res.Took.Truncate(time.Millisecond))
	for _, src := range res.Sources {
		line := fmt.Sprintf("  source %s: %s rows from %s", src.Name, humanize.Comma(int64(src.Rows)), src.Path)
		if src.Skipped > 0 {
			line += fmt.Sprintf(" (%s unreadable rows skipped)", humanize.Comma(int64(src.Skipped)))
		}
		fmt.Fprintln(w, line)
	}
	if len(res.Steps) > 0 {
		section(w, "Steps")
		fmt.Fprintln(w, stepsTable(res.Steps))
	}

	if s.Rows == 0 {
		fmt.Fprintf(w, "%s no rows in output\n", warnMark())
		return
	}

	section(w, "Overview")
	if opts.EntityColumn != "" {
		fmt.Fprintf(w, "  Entities (%s): %s\n", opts.EntityColumn, humanize.Comma(int64(s.Entities)))
	}
	if s.HasYears {
		fmt.Fprintf(w, "  Year range: %d-%d\n", s.YearMin, s.YearMax)
	}
	if s.Latest != nil {
		fmt.Fprintf(w, "  Available years: %s\n", joinInts(s.Years))
	}

	if len(s.Coverage) > 0 {
		section(w, "Coverage by entity")
		fmt.Fprintln(w, coverageTable(s.Coverage))
	}
	if len(s.YearCounts) > 0 {
		section(w, "Coverage by year")
		fmt.Fprintln(w, yearCountTable(s.YearCounts, len(opts.SampleEntities) > 0))
	}
	if len(s.Ranges) > 0 {
		section(w, "Value ranges")
		fmt.Fprintln(w, rangeTable(s.Ranges))
	}
	if s.Latest != nil && len(s.Latest.Shares) > 0 {
		section(w, fmt.Sprintf("Decile distribution, %d", s.Latest.Year))
		if s.Latest.WelfareType != "" {
			fmt.Fprintf(w, "  Welfare type: %s\n", s.Latest.WelfareType)
		}
		fmt.Fprintln(w, decileTable(s.Latest))
	}
	if opts.SampleRows > 0 {
		section(w, "Sample rows")
		fmt.Fprintln(w, sampleTable(res, opts.SampleRows))
	}
}

// Failure prints a failed run.
func Failure(w io.Writer, job string, err error) {
	fmt.Fprintf(w, "%s %s: %v\n", failMark(), job, err)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", heading.Sprint(title))
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func rightAligned(numbers ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(numbers))
	for i, n := range numbers {
		cfgs[i] = table.ColumnConfig{Number: n, Align: text.AlignRight}
	}
	return cfgs
}

func stepsTable(steps []pipeline.StepStat) string {
	t := newTable()
	t.AppendHeader(table.Row{"Scope", "Step", "In", "Out", "Dropped"})
	t.SetColumnConfigs(rightAligned(3, 4, 5))
	for _, st := range steps {
		dropped := humanize.Comma(int64(st.Dropped()))
		if st.Dropped() > 0 {
			dropped = color.New(color.FgYellow).Sprint(dropped)
		}
		t.AppendRow(table.Row{st.Scope, st.Kind, humanize.Comma(int64(st.In)), humanize.Comma(int64(st.Out)), dropped})
	}
	return t.Render()
}

func coverageTable(cs []EntityCoverage) string {
	t := newTable()
	t.AppendHeader(table.Row{"Entity", "First", "Last", "Years"})
	t.SetColumnConfigs(rightAligned(2, 3, 4))
	for _, c := range cs {
		if c.Years == 0 {
			t.AppendRow(table.Row{c.Entity, "-", "-", 0})
			continue
		}
		t.AppendRow(table.Row{c.Entity, c.First, c.Last, c.Years})
	}
	return t.Render()
}

func yearCountTable(ycs []YearCount, withSamples bool) string {
	t := newTable()
	header := table.Row{"Year", "Entities"}
	if withSamples {
		header = append(header, "Sample entities")
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(rightAligned(2))
	for _, yc := range ycs {
		row := table.Row{yc.Year, humanize.Comma(int64(yc.Entities))}
		if withSamples {
			row = append(row, strings.Join(yc.Samples, ", "))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func rangeTable(rs []ValueRange) string {
	t := newTable()
	t.AppendHeader(table.Row{"Column", "Min", "Max", "Values"})
	t.SetColumnConfigs(rightAligned(2, 3, 4))
	for _, r := range rs {
		t.AppendRow(table.Row{r.Column, formatNumber(r.Min), formatNumber(r.Max), humanize.Comma(int64(r.N))})
	}
	return t.Render()
}

func decileTable(d *DecileRow) string {
	t := newTable()
	t.AppendHeader(table.Row{"Decile", "Share"})
	t.SetColumnConfigs(rightAligned(2))
	for i, share := range d.Shares {
		cell := "-"
		if !math.IsNaN(share) {
			cell = fmt.Sprintf("%.2f%%", share)
		}
		t.AppendRow(table.Row{i + 1, cell})
	}
	return t.Render()
}

func sampleTable(res *pipeline.Result, n int) string {
	head := res.Table.Head(n)
	t := newTable()
	t.Style().Format.Footer = text.FormatDefault
	header := make(table.Row, len(head.Columns))
	for i, c := range head.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range head.Rows {
		row := make(table.Row, len(head.Columns))
		for i, c := range head.Columns {
			row[i] = csvfile.FormatCell(r[c])
		}
		t.AppendRow(row)
	}
	if res.Table.Len() > n {
		t.AppendFooter(table.Row{fmt.Sprintf("... %s more", humanize.Comma(int64(res.Table.Len()-n)))})
	}
	return t.Render()
}

// formatNumber keeps integers exact and rounds everything else to two
// decimals, with thousands separators.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return humanize.Comma(int64(f))
	}
	return humanize.CommafWithDigits(math.Round(f*100)/100, 2)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
