// Package csv parses delimited text into a table.Table. It handles the quirks
// of the indicator exports this project consumes: a UTF-8 byte order mark, a
// free-form preamble above the header, trailing delimiters that yield an
// unnamed last column, and the occasional ragged row.
package csv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first (non-skipped) row contains column
	// headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// SkipRows drops this many physical lines before CSV decoding starts.
	// World Bank API exports carry a four-line preamble above the header.
	SkipRows int

	// ExpectedFields, when > 0 and there is no header, enforces a fixed field
	// count per record. Rows with a different width are skipped and counted.
	ExpectedFields int

	// HeaderMap maps source header names to canonical keys. Only applies when
	// HasHeader is true.
	HeaderMap map[string]string

	// SnakeCase lowercases headers and replaces spaces with underscores for
	// headers not covered by HeaderMap.
	SnakeCase bool
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct {
	opt    Options
	logger *zap.SugaredLogger
}

// NewParser constructs a Parser with the provided Options. A nil logger
// discards soft-fail messages.
func NewParser(opt Options, logger *zap.SugaredLogger) *Parser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Parser{opt: opt, logger: logger}
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// maxLoggedSkips bounds the per-row skip messages for badly broken inputs.
const maxLoggedSkips = 50

// Parse reads all records from r and returns them as a table along with the
// number of rows that were skipped because they could not be decoded or had
// more fields than the header. Rows with fewer fields are padded with nil.
// Header or preamble failures are returned as errors.
func (p *Parser) Parse(r io.Reader) (*table.Table, int, error) {
	// Strip a leading BOM before the preamble is counted.
	br := bufio.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	for i := 0; i < p.opt.SkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, 0, fmt.Errorf("skip preamble: input ended after %d of %d lines", i, p.opt.SkipRows)
			}
			return nil, 0, fmt.Errorf("skip preamble: %w", err)
		}
	}

	cr := csv.NewReader(br)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var headers []string
	switch {
	case p.opt.HasHeader:
		h, err := cr.Read()
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt)
	case p.opt.ExpectedFields > 0:
		headers = make([]string, p.opt.ExpectedFields)
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i)
		}
	}

	var rows []records.Record
	var skipped int
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.skip(&skipped, "Skipping row %d: %v", line, err)
			continue
		}
		if len(headers) > 0 && len(row) > len(headers) {
			p.skip(&skipped, "Skipping row %d: too many fields (expected %d, got %d)", line, len(headers), len(row))
			continue
		}
		if headers == nil {
			headers = make([]string, len(row))
			for i := range row {
				headers[i] = keyFor(i, nil)
			}
		}

		// Short rows are padded: trailing empty cells are often not written.
		rec := make(records.Record, len(headers))
		for i, h := range headers {
			if i >= len(row) {
				rec[h] = nil
				continue
			}
			val := row[i]
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[h] = emptyToNil(val)
		}
		rows = append(rows, rec)
	}

	if headers == nil {
		headers = []string{}
	}
	return table.New(headers, rows), skipped, nil
}

func (p *Parser) skip(n *int, format string, args ...any) {
	if *n < maxLoggedSkips {
		p.logger.Warnf(format, args...)
	}
	*n++
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders produces canonical header keys: NFC-normalized and trimmed,
// then mapped through HeaderMap or snake-cased when requested. Empty headers
// (the trailing delimiter in World Bank exports) become "col_N". Duplicate
// names get a ".N" suffix so no column is silently overwritten.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := norm.NFC.String(strings.TrimSpace(col))
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		switch m, ok := opt.HeaderMap[c]; {
		case ok:
			c = m
		case opt.SnakeCase:
			c = strings.ReplaceAll(strings.ToLower(c), " ", "_")
		}
		if c == "" {
			c = keyFor(i, nil)
		}
		if n, dup := seen[c]; dup {
			seen[c] = n + 1
			c = fmt.Sprintf("%s.%d", c, n+1)
		} else {
			seen[c] = 0
		}
		res[i] = c
	}
	return res
}
