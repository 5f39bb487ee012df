// Package file implements a filesystem-backed data source on top of afero, so
// the same pipeline can read from disk in production and from an in-memory
// filesystem in tests.
package file

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Local is a data source that opens a single path on an afero.Fs.
type Local struct {
	fs   afero.Fs
	path string
}

// NewLocal returns a Local source bound to path on fs. A nil fs means the
// real operating-system filesystem.
func NewLocal(fs afero.Fs, path string) *Local {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Local{fs: fs, path: path}
}

// Name returns the configured path.
func (l *Local) Name() string { return l.path }

// Open opens the configured path for reading.
//
// A context that is already done short-circuits without touching the
// filesystem. Filesystem errors are wrapped with the path and still satisfy
// errors.Is(err, os.ErrNotExist) for missing files.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := l.fs.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
