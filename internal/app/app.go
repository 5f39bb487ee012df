// Package app wires the pieces the executables share: logger, metrics
// backend selection, running a job and printing its summary.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"povclean/internal/config"
	"povclean/internal/jobs"
	"povclean/internal/logger"
	"povclean/internal/metrics"
	"povclean/internal/metrics/datadog"
	"povclean/internal/metrics/prompush"
	"povclean/internal/pipeline"
	"povclean/internal/report"
)

// Environment variables read by SetupMetrics.
const (
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDogStatsDAddr  = "DOGSTATSD_ADDR"
	EnvVerbose        = "POVCLEAN_VERBOSE"
)

// SetupMetrics installs the backend named by METRICS_BACKEND ("pushgateway",
// "datadog", "none" or empty). A backend that cannot be built is logged and
// metrics stay disabled. The returned func flushes the backend.
func SetupMetrics(job string, getenv func(string) string, log *zap.SugaredLogger) (flush func()) {
	nop := func() {}
	name := strings.ToLower(getenv(EnvMetricsBackend))

	var (
		b   metrics.Backend
		err error
	)
	switch name {
	case "", "none":
		log.Debugw("metrics disabled", "backend", name)
		return nop
	case "pushgateway":
		url := getenv(EnvPushgatewayURL)
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err = prompush.NewBackend(job, url)
		log.Debugw("metrics backend", "backend", name, "url", url, "job", job)
	case "datadog":
		addr := getenv(EnvDogStatsDAddr)
		if addr == "" {
			addr = datadog.DefaultAddr
		}
		b, err = datadog.NewBackend(datadog.Config{Addr: addr})
		log.Debugw("metrics backend", "backend", name, "addr", addr)
	default:
		log.Warnw("unknown metrics backend; metrics disabled", "backend", name)
		return nop
	}
	if err != nil {
		log.Warnw("metrics backend unavailable; metrics disabled", "backend", name, "error", err)
		return nop
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warnw("metrics flush failed", "error", err)
		}
	}
}

// Runner runs pipelines and prints their summaries.
type Runner struct {
	FS     afero.Fs
	Logger *zap.SugaredLogger
	Out    io.Writer

	mu sync.Mutex
}

// Run executes p and prints its summary, or the failure, to Out.
func (r *Runner) Run(ctx context.Context, p config.Pipeline) error {
	var buf bytes.Buffer
	pr := &pipeline.Runner{FS: r.FS, Logger: r.Logger}
	res, err := pr.Run(ctx, p)
	if err != nil {
		report.Failure(&buf, p.Job, err)
	} else {
		report.Write(&buf, res, p.Report)
	}

	// Concurrent runs must not interleave their summaries.
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, werr := buf.WriteTo(r.Out); werr != nil && err == nil {
		err = werr
	}
	return err
}

// RunAll runs ps in dependency waves: every job whose dependencies have
// finished runs concurrently with the others of its wave. The first failure
// cancels the remaining jobs of its wave and stops later waves.
func (r *Runner) RunAll(ctx context.Context, ps []config.Pipeline) error {
	waves, err := Waves(ps)
	if err != nil {
		return err
	}
	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		for _, p := range wave {
			g.Go(func() error { return r.Run(gctx, p) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Waves groups ps into ordered batches so that each job comes after every job
// it depends on. Dependencies outside ps are ignored.
func Waves(ps []config.Pipeline) ([][]config.Pipeline, error) {
	deps := jobs.Dependencies(ps)
	done := make(map[string]bool, len(ps))
	inSet := make(map[string]bool, len(ps))
	for _, p := range ps {
		inSet[p.Job] = true
	}

	var waves [][]config.Pipeline
	remaining := ps
	for len(remaining) > 0 {
		var wave, next []config.Pipeline
		for _, p := range remaining {
			ready := true
			for _, d := range deps[p.Job] {
				if inSet[d] && !done[d] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, p)
			} else {
				next = append(next, p)
			}
		}
		if len(wave) == 0 {
			names := make([]string, len(next))
			for i, p := range next {
				names[i] = p.Job
			}
			return nil, fmt.Errorf("dependency cycle among jobs: %s", strings.Join(names, ", "))
		}
		for _, p := range wave {
			done[p.Job] = true
		}
		waves = append(waves, wave)
		remaining = next
	}
	return waves, nil
}

// Main runs one built-in job with the operating-system filesystem and returns
// the process exit code. It backs the argument-less cleaning executables.
func Main(job string) int {
	log := logger.New(os.Getenv(EnvVerbose) != "")
	defer func() { _ = log.Sync() }()

	p, ok := jobs.Named(job)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown job %q\n", job)
		return 2
	}
	flush := SetupMetrics(p.Job, os.Getenv, log)
	defer flush()

	r := &Runner{Logger: log, Out: os.Stdout}
	if err := r.Run(context.Background(), p); err != nil {
		return 1
	}
	return 0
}
