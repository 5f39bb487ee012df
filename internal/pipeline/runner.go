// Package pipeline executes a config.Pipeline: it loads every source (local
// file or HTTP download), runs the per-source and main step chains, checks
// the output contract, then sorts and writes the result. Runs are
// synchronous; a Runner may be shared by concurrent runs of different
// pipelines.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"povclean/internal/config"
	"povclean/internal/datasource"
	"povclean/internal/datasource/file"
	"povclean/internal/datasource/httpds"
	"povclean/internal/metrics"
	"povclean/internal/parser"
	csvparser "povclean/internal/parser/csv"
	"povclean/internal/storage"
	_ "povclean/internal/storage/all"
	"povclean/internal/table"
	"povclean/internal/transformer/builtin"
)

// ErrInvalidPipeline wraps static validation failures.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// Runner executes pipelines against a filesystem.
type Runner struct {
	// FS is where sources are read and outputs written. Nil means the OS
	// filesystem.
	FS afero.Fs
	// Logger receives progress and drop accounting. Nil discards.
	Logger *zap.SugaredLogger
	// Transport is used by http sources. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// SourceStat describes one loaded source.
type SourceStat struct {
	Name    string
	Path    string
	Rows    int
	Skipped int
}

// StepStat describes one executed step.
type StepStat struct {
	// Scope is the source name for per-source steps, or the job name for the
	// main chain.
	Scope    string
	Kind     string
	In       int
	Out      int
	Duration time.Duration
}

// Dropped returns how many rows the step removed. Joins can grow a table, in
// which case nothing was dropped.
func (s StepStat) Dropped() int {
	if s.Out >= s.In {
		return 0
	}
	return s.In - s.Out
}

// Result is what a run produced.
type Result struct {
	Job     string
	RunID   string
	Sources []SourceStat
	Steps   []StepStat
	// Table is the output as written (sorted).
	Table  *table.Table
	Output string
	Took   time.Duration
}

func (r *Runner) fs() afero.Fs {
	if r.FS == nil {
		return afero.NewOsFs()
	}
	return r.FS
}

func (r *Runner) logger() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return r.Logger
}

// Run executes p. Missing files and schema mismatches abort the run; value
// problems are absorbed by the steps and show up as dropped rows.
func (r *Runner) Run(ctx context.Context, p config.Pipeline) (*Result, error) {
	started := time.Now()
	issues := config.ValidatePipeline(p)
	if config.HasErrors(issues) {
		msgs := make([]string, 0, len(issues))
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				msgs = append(msgs, iss.Error())
			}
		}
		return nil, fmt.Errorf("%w %q: %s", ErrInvalidPipeline, p.Job, strings.Join(msgs, "; "))
	}

	res := &Result{Job: p.Job, RunID: uuid.NewString(), Output: p.Storage.CSV.Path}
	log := r.logger().With("job", p.Job, "run_id", res.RunID)
	for _, iss := range issues {
		log.Debugw("pipeline lint", "path", iss.Path, "message", iss.Message)
	}

	env := builtin.Env{}
	for _, src := range p.Sources {
		t, stat, err := r.load(ctx, p.Job, src)
		if err != nil {
			return nil, err
		}
		res.Sources = append(res.Sources, stat)
		log.Infow("loaded source", "source", src.Name, "path", stat.Path, "rows", stat.Rows, "skipped", stat.Skipped)

		if len(src.Transform) > 0 {
			t, err = r.runChain(ctx, p.Job, src.Name, src.Transform, t, env, res, log)
			if err != nil {
				return nil, err
			}
		}
		env[src.Name] = t
	}

	out, err := r.runChain(ctx, p.Job, p.Job, p.Transform, env[p.MainSource()], env, res, log)
	if err != nil {
		return nil, err
	}

	if p.Contract != nil {
		if err := p.Contract.Check(out); err != nil {
			return nil, fmt.Errorf("%s: %w", p.Job, err)
		}
	}
	if out.Len() == 0 {
		log.Warnw("pipeline produced no rows; writing header only", "output", p.Storage.CSV.Path)
	}

	written, err := r.export(ctx, p, out, log)
	if err != nil {
		return nil, err
	}
	res.Table = written
	res.Took = time.Since(started)
	metrics.RecordRow(p.Job, "written", int64(written.Len()))
	log.Infow("wrote output", "path", p.Storage.CSV.Path, "rows", written.Len(), "took", res.Took.Truncate(time.Millisecond))
	return res, nil
}

func (r *Runner) load(ctx context.Context, job string, src config.Source) (*table.Table, SourceStat, error) {
	stat := SourceStat{Name: src.Name, Path: src.Location()}
	start := time.Now()

	rc, err := r.open(ctx, src)
	if err != nil {
		metrics.RecordStep(job, "load", err, time.Since(start))
		return nil, stat, fmt.Errorf("source %s: %w", src.Name, err)
	}
	defer rc.Close()

	var p parser.Parser = csvparser.NewParser(ParserOptions(src.Parser.Options), r.logger().With("source", src.Name))
	t, skipped, err := p.Parse(rc)
	metrics.RecordStep(job, "load", err, time.Since(start))
	if err != nil {
		return nil, stat, fmt.Errorf("source %s: parse %s: %w", src.Name, stat.Path, err)
	}
	stat.Rows = t.Len()
	stat.Skipped = skipped
	metrics.RecordRow(job, "loaded", int64(t.Len()))
	metrics.RecordRow(job, "parse_skipped", int64(skipped))
	return t, stat, nil
}

func (r *Runner) open(ctx context.Context, src config.Source) (io.ReadCloser, error) {
	var ds datasource.Source
	switch src.Kind {
	case "", "file":
		ds = file.NewLocal(r.fs(), src.File.Path)
	case "http":
		if src.HTTP == nil {
			return nil, fmt.Errorf("http source without url")
		}
		hdr := make(http.Header, len(src.HTTP.Headers))
		for k, v := range src.HTTP.Headers {
			hdr.Set(k, v)
		}
		ds = httpds.New(src.HTTP.URL, httpds.Config{
			Timeout:    time.Duration(src.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries: src.HTTP.MaxRetries,
			Headers:    hdr,
			Transport:  r.Transport,
		})
	default:
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
	}
	return ds.Open(ctx)
}

// ParserOptions maps config options onto the CSV parser. Headers are assumed
// unless has_header is false.
func ParserOptions(o config.Options) csvparser.Options {
	return csvparser.Options{
		HasHeader:      o.Bool("has_header", true),
		Comma:          o.Rune("comma", ','),
		TrimSpace:      o.Bool("trim_space", false),
		SkipRows:       o.Int("skip_rows", 0),
		ExpectedFields: o.Int("expected_fields", 0),
		HeaderMap:      o.StringMap("header_map"),
		SnakeCase:      o.Bool("snake_case", false),
	}
}

func (r *Runner) runChain(ctx context.Context, job, scope string, ts []config.Transform, in *table.Table, env builtin.Env, res *Result, log *zap.SugaredLogger) (*table.Table, error) {
	if in == nil {
		return nil, fmt.Errorf("%s: no input table", scope)
	}
	chain, err := builtin.BuildChain(ts, env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scope, err)
	}

	cur := in
	for i, step := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind := ts[i].Kind
		start := time.Now()
		out, err := step.Apply(cur)
		d := time.Since(start)
		metrics.RecordStep(job, kind, err, d)
		if err != nil {
			return nil, fmt.Errorf("%s: step %d (%s): %w", scope, i, kind, err)
		}

		st := StepStat{Scope: scope, Kind: kind, In: cur.Len(), Out: out.Len(), Duration: d}
		res.Steps = append(res.Steps, st)
		if n := st.Dropped(); n > 0 {
			metrics.RecordDropped(job, kind, int64(n))
			log.Debugw("step dropped rows", "scope", scope, "step", kind, "in", st.In, "out", st.Out)
		}
		if out.Len() == 0 && cur.Len() > 0 {
			log.Warnw("step left no rows", "scope", scope, "step", kind, "in", st.In)
		}
		cur = out
	}
	return cur, nil
}

func (r *Runner) export(ctx context.Context, p config.Pipeline, t *table.Table, log *zap.SugaredLogger) (*table.Table, error) {
	start := time.Now()
	kind := p.Storage.Kind
	if kind == "" {
		kind = "csv"
	}
	comma := ','
	if p.Storage.CSV.Comma != "" {
		comma = []rune(p.Storage.CSV.Comma)[0]
	}
	sink, err := storage.New(ctx, storage.Config{
		Kind:   kind,
		Path:   p.Storage.CSV.Path,
		Comma:  comma,
		FS:     r.fs(),
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Job, err)
	}
	written, err := storage.Export(ctx, sink, t, p.Storage.SortBy)
	metrics.RecordStep(p.Job, "export", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Job, err)
	}
	return written, nil
}
