// Package transformer defines the step abstraction of the cleaning pipeline.
// A step takes a table and returns a new one; steps never modify their input.
package transformer

import (
	"fmt"

	"povclean/internal/table"
)

// Transformer is a single pipeline step.
type Transformer interface {
	Apply(in *table.Table) (*table.Table, error)
}

// Func adapts a plain function to Transformer.
type Func func(in *table.Table) (*table.Table, error)

// Apply calls f.
func (f Func) Apply(in *table.Table) (*table.Table, error) { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs the steps in order and stops at the first error.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for i, t := range c {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, fmt.Errorf("step %d (%T): %w", i, t, err)
		}
	}
	return out, nil
}
