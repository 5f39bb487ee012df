package builtin

import (
	"fmt"

	"povclean/internal/config"
	"povclean/internal/join"
	"povclean/internal/table"
	"povclean/internal/transformer"
)

// Env holds the named tables a step may refer to (metadata for
// country_filter, the other side of a join).
type Env map[string]*table.Table

// Kinds lists every step kind Build understands.
func Kinds() []string {
	return []string{
		"coerce", "count", "country_filter", "dedupe", "equals", "join", "melt",
		"normalize", "rename", "require", "select", "sort", "where",
	}
}

// Build constructs the step described by t. Options are decoded strictly, so
// an unknown option key is an error.
func Build(t config.Transform, env Env) (transformer.Transformer, error) {
	switch t.Kind {
	case "country_filter":
		var f CountryFilter
		if err := t.Options.Decode(&f); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Kind, err)
		}
		meta, err := env.lookup(f.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Kind, err)
		}
		return f.WithMetadata(meta), nil
	case "join":
		var j Join
		if err := t.Options.Decode(&j); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Kind, err)
		}
		right, err := env.lookup(j.With)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Kind, err)
		}
		return j.WithRight(right), nil
	case "where":
		w := &Where{}
		if err := t.Options.Decode(w); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Kind, err)
		}
		if _, _, err := w.compile(); err != nil {
			return nil, fmt.Errorf("%s %q: %w", t.Kind, w.Expr, err)
		}
		return w, nil
	}

	var step transformer.Transformer
	var err error
	switch t.Kind {
	case "melt":
		step, err = decode[Melt](t.Options)
	case "coerce":
		step, err = decode[Coerce](t.Options)
	case "require":
		step, err = decode[Require](t.Options)
	case "equals":
		step, err = decode[Equals](t.Options)
	case "count":
		step, err = decode[CountBy](t.Options)
	case "select":
		step, err = decode[Select](t.Options)
	case "rename":
		step, err = decode[Rename](t.Options)
	case "sort":
		step, err = decode[Sort](t.Options)
	case "dedupe":
		step, err = decode[DeDup](t.Options)
	case "normalize":
		step, err = decode[Normalize](t.Options)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransform, t.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Kind, err)
	}
	return step, nil
}

// BuildChain builds every step of ts in order.
func BuildChain(ts []config.Transform, env Env) (transformer.Chain, error) {
	c := make(transformer.Chain, 0, len(ts))
	for i, t := range ts {
		step, err := Build(t, env)
		if err != nil {
			return nil, fmt.Errorf("transform[%d]: %w", i, err)
		}
		c = append(c, step)
	}
	return c, nil
}

func decode[T transformer.Transformer](o config.Options) (transformer.Transformer, error) {
	var v T
	if err := o.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (e Env) lookup(name string) (*table.Table, error) {
	if name == "" {
		return nil, fmt.Errorf("missing table name")
	}
	t, ok := e[name]
	if !ok {
		return nil, fmt.Errorf("table %q not loaded", name)
	}
	return t, nil
}

// Join inner-joins the incoming table with the table named With.
type Join struct {
	With        string   `json:"with"`
	On          []string `json:"on"`
	DropMissing bool     `json:"drop_missing"`

	right *table.Table
}

// WithRight binds the right-hand table used by Apply.
func (j Join) WithRight(right *table.Table) Join {
	j.right = right
	return j
}

// Apply implements transformer.Transformer.
func (j Join) Apply(in *table.Table) (*table.Table, error) {
	if j.right == nil {
		return nil, fmt.Errorf("join: table %q not bound", j.With)
	}
	return join.Inner(in, j.right, join.Options{On: j.On, DropMissing: j.DropMissing})
}
