// Package config provides configuration models and helpers for cleaning
// pipelines.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "transform[1].options.metadata"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// KnownTransforms lists the step kinds the runner can build. The transformer
// registry is the source of truth; this copy keeps config free of that
// dependency and is kept in sync by a test.
var KnownTransforms = []string{
	"coerce", "count", "country_filter", "dedupe", "equals", "join", "melt",
	"normalize", "rename", "require", "select", "sort", "where",
}

// tableRefs lists, per step kind, the option naming another source.
var tableRefs = map[string]string{
	"country_filter": "metadata",
	"join":           "with",
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers may decide whether to treat
// warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs, metrics and the summary",
		})
	}
	if len(p.Sources) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sources",
			Message:  "at least one source is required",
		})
	}

	seen := map[string]bool{}
	for i, s := range p.Sources {
		issues = append(issues, validateSource(fmt.Sprintf("sources[%d]", i), s, seen)...)
		seen[s.Name] = true
	}

	if p.From != "" && !seen[p.From] {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "from",
			Message:  fmt.Sprintf("from refers to unknown source %q", p.From),
		})
	}
	issues = append(issues, validateTransforms("transform", p.Transform, seen)...)
	issues = append(issues, validateStorage(p.Storage)...)

	if p.Contract != nil && len(p.Contract.Fields) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "contract.fields",
			Message:  "contract has no fields; it will not enforce anything",
		})
	}
	return issues
}

// validateSource validates one Source. seen holds the names of the sources
// declared before it.
func validateSource(path string, s Source, seen map[string]bool) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".name",
			Message:  "source name must not be empty",
		})
	} else if seen[s.Name] {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".name",
			Message:  fmt.Sprintf("duplicate source name %q", s.Name),
		})
	}

	switch s.Kind {
	case "", "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		if s.HTTP == nil || strings.TrimSpace(s.HTTP.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".http.url",
				Message:  "http source requires a url",
			})
			break
		}
		if u, err := url.Parse(s.HTTP.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".http.url",
				Message:  fmt.Sprintf("invalid url %q; want an absolute http(s) url", s.HTTP.URL),
			})
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".http.max_retries",
				Message:  "max_retries must not be negative",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown source kind %q", s.Kind),
		})
	}

	switch s.Parser.Kind {
	case "", "csv":
		if s.Parser.Options.Int("skip_rows", 0) < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".parser.options.skip_rows",
				Message:  "skip_rows must not be negative",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q", s.Parser.Kind),
		})
	}

	issues = append(issues, validateTransforms(path+".transform", s.Transform, seen)...)
	return issues
}

// validateTransforms validates a transform chain.
func validateTransforms(path string, ts []Transform, seen map[string]bool) []Issue {
	var issues []Issue
	known := map[string]struct{}{}
	for _, k := range KnownTransforms {
		known[k] = struct{}{}
	}

	for i, t := range ts {
		p := fmt.Sprintf("%s[%d]", path, i)
		if strings.TrimSpace(t.Kind) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".kind",
				Message:  "transform kind must not be empty",
			})
			continue
		}
		if _, ok := known[t.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".kind",
				Message:  fmt.Sprintf("unknown transform kind %q", t.Kind),
			})
			continue
		}
		if opt, ok := tableRefs[t.Kind]; ok {
			ref := t.Options.String(opt, "")
			if ref == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("%s.options.%s", p, opt),
					Message:  fmt.Sprintf("%s requires %q naming another source", t.Kind, opt),
				})
			} else if !seen[ref] {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("%s.options.%s", p, opt),
					Message:  fmt.Sprintf("%q is not a source declared earlier", ref),
				})
			}
		}
		switch t.Kind {
		case "melt":
			if len(t.Options.StringSlice("value_columns")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     p + ".options.value_columns",
					Message:  "no value_columns; year columns will be auto-detected",
				})
			}
		case "join", "count", "dedupe", "sort":
			if len(t.Options.StringSlice("on")) == 0 && len(t.Options.StringSlice("keys")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     p + ".options",
					Message:  fmt.Sprintf("%s requires key columns", t.Kind),
				})
			}
		case "where":
			if strings.TrimSpace(t.Options.String("expr", "")) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     p + ".options.expr",
					Message:  "where requires an expression",
				})
			}
		}
	}
	return issues
}

// validateStorage validates storage configuration.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	switch s.Kind {
	case "", "csv":
		if strings.TrimSpace(s.CSV.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.csv.path",
				Message:  "storage.csv.path must not be empty",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q", s.Kind),
		})
	}
	if len(s.SortBy) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.sort_by",
			Message:  "no sort keys; output order follows the last step",
		})
	}
	return issues
}
