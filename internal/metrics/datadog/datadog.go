// Package datadog forwards the cleaning metrics to a DogStatsD agent.
//
// With METRICS_BACKEND=datadog every job run reports the clean_step_total and
// clean_rows_total counters, clean_rows_dropped_total for rows a step
// removed, and clean_step_duration_seconds as a histogram. Metric labels such
// as job, step and kind become tags, so the agent can break one job's figures
// down per step.
package datadog

import (
	"fmt"
	"sort"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/samber/lo"

	"povclean/internal/metrics"
)

// Defaults used when the corresponding Config field is empty.
const (
	DefaultAddr      = "127.0.0.1:8125"
	DefaultNamespace = "povclean."
	ServiceTag       = "service:povclean"
)

// Config selects the agent and the prefix under which the clean_* metrics
// appear, for example povclean.clean_rows_total.
type Config struct {
	Addr      string // host:port or unix:///path; DefaultAddr when empty
	Namespace string // DefaultNamespace when empty
	Tags      []string
}

// Backend implements metrics.Backend on a statsd client. A zero Backend
// discards everything.
type Backend struct {
	client *statsd.Client
}

// NewBackend connects to the agent. ServiceTag is always added so the
// cleaning jobs share one service in Datadog.
func NewBackend(cfg Config) (*Backend, error) {
	addr := lo.Ternary(cfg.Addr == "", DefaultAddr, cfg.Addr)
	ns := lo.Ternary(cfg.Namespace == "", DefaultNamespace, cfg.Namespace)

	c, err := statsd.New(addr,
		statsd.WithNamespace(ns),
		statsd.WithTags(globalTags(cfg.Tags)),
	)
	if err != nil {
		return nil, fmt.Errorf("datadog: connect %s: %w", addr, err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a row or step count. Counts are whole rows, so delta is
// truncated to int64.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(name, int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram sends a step duration in seconds.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush closes the client, which sends whatever is still buffered. It is
// called once when the job exits.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func globalTags(extra []string) []string {
	return lo.Uniq(append([]string{ServiceTag}, extra...))
}

// labelsToTags renders labels as key:value tags, sorted by key.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	keys := lo.Keys(lbls)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) string {
		return k + ":" + lbls[k]
	})
}
