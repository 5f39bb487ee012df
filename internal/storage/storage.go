// Package storage contains the sink contract for cleaned tables and a small
// registry so callers can open a sink by kind without importing backends.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"povclean/internal/table"
)

// Sink persists a cleaned table. Write replaces whatever the destination held
// before and returns the number of data rows written.
type Sink interface {
	Write(ctx context.Context, t *table.Table) (int, error)
}

// Config describes a sink. Backends read the fields they need.
type Config struct {
	Kind  string
	Path  string
	Comma rune

	// FS is the filesystem file-backed sinks write to. Nil means the OS
	// filesystem.
	FS     afero.Fs
	Logger *zap.SugaredLogger
}

// Factory opens a sink for cfg.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the sink registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Export sorts t ascending and stably by sortBy and writes it to sink. An
// empty table is still written, so the destination ends up with a header.
// It returns the table as written.
func Export(ctx context.Context, sink Sink, t *table.Table, sortBy []string) (*table.Table, error) {
	sorted, err := t.SortBy(sortBy...)
	if err != nil {
		return nil, fmt.Errorf("export: sort: %w", err)
	}
	if _, err := sink.Write(ctx, sorted); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return sorted, nil
}
