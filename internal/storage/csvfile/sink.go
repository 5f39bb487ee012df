// Package csvfile writes cleaned tables as comma-separated text. Importing it
// registers the "csv" storage kind.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"povclean/internal/storage"
	"povclean/internal/table"
)

func init() {
	storage.Register("csv", func(_ context.Context, cfg storage.Config) (storage.Sink, error) {
		return New(cfg)
	})
}

// Sink writes a table to a single file, truncating it first.
type Sink struct {
	fs     afero.Fs
	path   string
	comma  rune
	logger *zap.SugaredLogger
}

// New returns a Sink for cfg.Path.
func New(cfg storage.Config) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv sink: empty path")
	}
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	comma := cfg.Comma
	if comma == 0 {
		comma = ','
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sink{fs: fs, path: cfg.Path, comma: comma, logger: logger}, nil
}

// Path returns the destination file.
func (s *Sink) Path() string { return s.path }

// Write writes a header row followed by one line per record. Column order is
// t.Columns.
func (s *Sink) Write(ctx context.Context, t *table.Table) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = s.comma
	if err := w.Write(t.Columns); err != nil {
		f.Close()
		return 0, fmt.Errorf("write header %s: %w", s.path, err)
	}
	line := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		for j, c := range t.Columns {
			line[j] = FormatCell(r[c])
		}
		if err := w.Write(line); err != nil {
			f.Close()
			return i, fmt.Errorf("write %s: row %d: %w", s.path, i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return t.Len(), fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return t.Len(), fmt.Errorf("close %s: %w", s.path, err)
	}
	s.logger.Debugw("wrote csv", "path", s.path, "rows", t.Len(), "columns", len(t.Columns))
	return t.Len(), nil
}

// FormatCell renders a cell. Floats use the shortest representation that
// parses back to the same value; missing values are empty.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(x)) {
			return ""
		}
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}
