// Command etl is the operator entry point: it runs a pipeline from a JSON
// file or one of the built-in jobs, validates pipeline files, and runs every
// built-in job in dependency order.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"povclean/internal/app"
	"povclean/internal/config"
	"povclean/internal/jobs"
	"povclean/internal/logger"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr, afero.NewOsFs()).Run(os.Args); err != nil {
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}

type state struct {
	fs     afero.Fs
	stdout io.Writer
	log    *zap.SugaredLogger
	flush  func()
}

func newApp(stdout, stderr io.Writer, fs afero.Fs) *cli.App {
	st := &state{fs: fs, stdout: stdout, log: zap.NewNop().Sugar(), flush: func() {}}

	return &cli.App{
		Name:      "etl",
		Usage:     "Clean the poverty, inequality and trafficking datasets",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logs",
				EnvVars: []string{app.EnvVerbose},
			},
		},
		Before: func(c *cli.Context) error {
			st.log = logger.NewWithSink(c.Bool("verbose"), zapcore.AddSync(stderr))
			return nil
		},
		After: func(c *cli.Context) error {
			st.flush()
			_ = st.log.Sync()
			return nil
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			// Failed runs have already printed their summary.
			if err != nil && err.Error() != "" {
				fmt.Fprintln(stderr, color.New(color.FgRed).Sprint(err))
			}
		},
		Commands: []*cli.Command{
			runCmd(st),
			validateCmd(st),
			jobsCmd(st),
			runAllCmd(st),
		},
	}
}

func runCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a pipeline from a JSON file or a built-in job",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "pipeline JSON path"},
			&cli.StringFlag{Name: "job", Aliases: []string{"j"}, Usage: "built-in job name (see `etl jobs`)"},
		},
		Action: func(c *cli.Context) error {
			p, err := pickPipeline(st.fs, c.String("config"), c.String("job"))
			if err != nil {
				return cli.Exit(err, 2)
			}
			st.flush = app.SetupMetrics(p.Job, os.Getenv, st.log)
			r := &app.Runner{FS: st.fs, Logger: st.log, Out: st.stdout}
			if err := r.Run(c.Context, p); err != nil {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func validateCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "lint pipeline JSON files without running them",
		ArgsUsage: "[pipeline.json ...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "config", Aliases: []string{"c"}, Usage: "pipeline JSON path (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			paths := append(c.StringSlice("config"), c.Args().Slice()...)
			if len(paths) == 0 {
				return cli.Exit("validate: no pipeline files given", 2)
			}
			invalid := 0
			for _, path := range paths {
				p, err := readPipeline(st.fs, path)
				if err != nil {
					fmt.Fprintf(st.stdout, "%s: %v\n", path, err)
					invalid++
					continue
				}
				issues := config.ValidatePipeline(p)
				for _, iss := range issues {
					fmt.Fprintf(st.stdout, "%s: %s\n", path, iss.Error())
				}
				if config.HasErrors(issues) {
					invalid++
					continue
				}
				fmt.Fprintf(st.stdout, "%s: ok\n", path)
			}
			if invalid > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d pipelines invalid", invalid, len(paths)), 1)
			}
			return nil
		},
	}
}

func jobsCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:      "jobs",
		Usage:     "list the built-in jobs, or print one as pipeline JSON",
		ArgsUsage: "[job]",
		Action: func(c *cli.Context) error {
			if name := c.Args().First(); name != "" {
				p, ok := jobs.Named(name)
				if !ok {
					return cli.Exit(unknownJob(name), 2)
				}
				enc := json.NewEncoder(st.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			for _, p := range jobs.All() {
				fmt.Fprintf(st.stdout, "%-22s %s -> %s\n", p.Job, p.Description, p.Storage.CSV.Path)
			}
			return nil
		},
	}
}

func runAllCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "run-all",
		Usage: "run every built-in job; independent jobs run concurrently",
		Action: func(c *cli.Context) error {
			st.flush = app.SetupMetrics("povclean", os.Getenv, st.log)
			r := &app.Runner{FS: st.fs, Logger: st.log, Out: st.stdout}
			if err := r.RunAll(c.Context, jobs.All()); err != nil {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func pickPipeline(fs afero.Fs, path, job string) (config.Pipeline, error) {
	switch {
	case path != "" && job != "":
		return config.Pipeline{}, fmt.Errorf("run: --config and --job are mutually exclusive")
	case path != "":
		return readPipeline(fs, path)
	case job != "":
		p, ok := jobs.Named(job)
		if !ok {
			return config.Pipeline{}, fmt.Errorf("run: %s", unknownJob(job))
		}
		return p, nil
	}
	return config.Pipeline{}, fmt.Errorf("run: one of --config or --job is required")
}

// readPipeline decodes a pipeline file. Unknown top-level fields are rejected
// so that misspelled keys do not silently fall back to defaults.
func readPipeline(fs afero.Fs, path string) (config.Pipeline, error) {
	var p config.Pipeline
	f, err := fs.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

func unknownJob(name string) string {
	return fmt.Sprintf("unknown job %q (have: %s)", name, strings.Join(jobs.Names(), ", "))
}
