package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"povclean/internal/config"
	"povclean/internal/metrics"
	"povclean/internal/schema"
	"povclean/internal/table"
)

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (b *recordingBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counters == nil {
		b.counters = map[string]float64{}
	}
	b.counters[name+"/"+labels["step"]+labels["kind"]] += delta
}

func (b *recordingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *recordingBackend) Flush() error                                     { return nil }

func (b *recordingBackend) get(key string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters[key]
}

const scoresCSV = "code,year,score\nA,2000,1.5\nB,2000,\nA,2001,2\n"
const sizesCSV = "code,year,size\nA,2000,10\nA,2001,11\nC,2000,5\n"

func fixtureFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "in/scores.csv", []byte(scoresCSV), 0o644))
	require.NoError(t, afero.WriteFile(fs, "in/sizes.csv", []byte(sizesCSV), 0o644))
	return fs
}

func csvSource(name, path string, types map[string]any) config.Source {
	return config.Source{
		Name:   name,
		Kind:   "file",
		File:   config.SourceFile{Path: path},
		Parser: config.Parser{Kind: "csv"},
		Transform: []config.Transform{
			{Kind: "coerce", Options: config.Options{"types": types, "null_on_error": true}},
		},
	}
}

func joinPipeline() config.Pipeline {
	return config.Pipeline{
		Job: "scores_sizes",
		Sources: []config.Source{
			csvSource("scores", "in/scores.csv", map[string]any{"year": "int", "score": "float"}),
			csvSource("sizes", "in/sizes.csv", map[string]any{"year": "int", "size": "int"}),
		},
		From: "scores",
		Transform: []config.Transform{
			{Kind: "require", Options: config.Options{"fields": []any{"score"}}},
			{Kind: "join", Options: config.Options{"with": "sizes", "on": []any{"code", "year"}, "drop_missing": true}},
		},
		Contract: &schema.Contract{Name: "scores_sizes", Fields: []schema.Field{
			{Name: "code", Type: "text"},
			{Name: "year", Type: "int"},
			{Name: "score", Type: "float"},
			{Name: "size", Type: "int"},
		}},
		Storage: config.Storage{Kind: "csv", CSV: config.StorageCSV{Path: "out/joined.csv"}, SortBy: []string{"code", "year"}},
	}
}

func newRunner(fs afero.Fs) *Runner {
	return &Runner{FS: fs, Logger: zap.NewNop().Sugar()}
}

func TestRun_JoinPipeline(t *testing.T) {
	rb := &recordingBackend{}
	metrics.SetBackend(rb)
	t.Cleanup(func() { metrics.SetBackend(&recordingBackend{}) })

	fs := fixtureFS(t)
	res, err := newRunner(fs).Run(context.Background(), joinPipeline())
	require.NoError(t, err)

	assert.Equal(t, "scores_sizes", res.Job)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "out/joined.csv", res.Output)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, SourceStat{Name: "scores", Path: "in/scores.csv", Rows: 3}, res.Sources[0])
	assert.Equal(t, 3, res.Sources[1].Rows)

	require.Len(t, res.Steps, 4)
	got := make([][3]any, len(res.Steps))
	for i, s := range res.Steps {
		got[i] = [3]any{s.Scope + "/" + s.Kind, s.In, s.Out}
	}
	assert.Equal(t, [][3]any{
		{"scores/coerce", 3, 3},
		{"sizes/coerce", 3, 3},
		{"scores_sizes/require", 3, 2},
		{"scores_sizes/join", 2, 2},
	}, got)
	assert.Equal(t, 1, res.Steps[2].Dropped())

	b, err := afero.ReadFile(fs, "out/joined.csv")
	require.NoError(t, err)
	assert.Equal(t, "code,year,score,size\nA,2000,1.5,10\nA,2001,2,11\n", string(b))
	assert.Equal(t, 2, res.Table.Len())

	assert.Equal(t, float64(1), rb.get(metrics.RowsDroppedTotal+"/require"))
	assert.Equal(t, float64(6), rb.get(metrics.RowsTotal+"/loaded"))
	assert.Equal(t, float64(2), rb.get(metrics.RowsTotal+"/written"))
}

func TestRun_MissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "in/scores.csv", []byte(scoresCSV), 0o644))

	_, err := newRunner(fs).Run(context.Background(), joinPipeline())
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "sizes")

	exists, _ := afero.Exists(fs, "out/joined.csv")
	assert.False(t, exists)
}

func TestRun_InvalidPipeline(t *testing.T) {
	p := joinPipeline()
	p.Job = ""
	p.Transform = append(p.Transform, config.Transform{Kind: "pivot"})

	_, err := newRunner(afero.NewMemMapFs()).Run(context.Background(), p)
	require.ErrorIs(t, err, ErrInvalidPipeline)
	assert.Contains(t, err.Error(), "pivot")
}

func TestRun_SchemaMismatch(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		p := joinPipeline()
		p.Transform[1].Options["on"] = []any{"code", "yr"}

		_, err := newRunner(fixtureFS(t)).Run(context.Background(), p)
		require.ErrorIs(t, err, table.ErrMissingColumn)
	})

	t.Run("contract type", func(t *testing.T) {
		fs := fixtureFS(t)
		p := joinPipeline()
		p.Sources[0].Transform = nil // year stays text

		_, err := newRunner(fs).Run(context.Background(), p)
		require.ErrorIs(t, err, schema.ErrContract)
		exists, _ := afero.Exists(fs, "out/joined.csv")
		assert.False(t, exists)
	})

	t.Run("unknown sort key", func(t *testing.T) {
		p := joinPipeline()
		p.Storage.SortBy = []string{"region"}

		_, err := newRunner(fixtureFS(t)).Run(context.Background(), p)
		require.ErrorIs(t, err, table.ErrMissingColumn)
	})
}

func TestRun_EmptyResultWritesHeader(t *testing.T) {
	fs := fixtureFS(t)
	p := joinPipeline()
	p.Transform = append([]config.Transform{
		{Kind: "where", Options: config.Options{"expr": `code == "Z"`}},
	}, p.Transform...)

	res, err := newRunner(fs).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Len())

	b, err := afero.ReadFile(fs, "out/joined.csv")
	require.NoError(t, err)
	assert.Equal(t, "code,year,score,size\n", string(b))
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(fixtureFS(t)).Run(ctx, joinPipeline())
	require.ErrorIs(t, err, context.Canceled)
}

func TestParserOptions(t *testing.T) {
	o := ParserOptions(nil)
	assert.True(t, o.HasHeader)
	assert.Equal(t, ',', o.Comma)
	assert.Zero(t, o.SkipRows)

	o = ParserOptions(config.Options{"has_header": false, "comma": ";", "skip_rows": 4})
	assert.False(t, o.HasHeader)
	assert.Equal(t, ';', o.Comma)
	assert.Equal(t, 4, o.SkipRows)
}

func TestRun_HTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scores.csv":
			_, _ = io.WriteString(w, scoresCSV)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fs := fixtureFS(t)
	p := joinPipeline()
	p.Sources[0].Kind = "http"
	p.Sources[0].HTTP = &config.SourceHTTP{URL: srv.URL + "/scores.csv", MaxRetries: 1}

	res, err := newRunner(fs).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/scores.csv", res.Sources[0].Path)
	assert.Equal(t, 2, res.Table.Len())

	p.Sources[0].HTTP.URL = srv.URL + "/gone.csv"
	_, err = newRunner(fs).Run(context.Background(), p)
	require.ErrorIs(t, err, os.ErrNotExist)
}
