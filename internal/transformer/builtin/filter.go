package builtin

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"povclean/internal/table"
	"povclean/pkg/records"
)

// Where keeps the rows for which Expr evaluates to true. The expression sees
// the row's columns as variables; columns whose names are not identifiers are
// reachable as $env["Country Code"]. A name that is not a column of the input
// fails the step with table.ErrMissingColumn.
//
//	typeOfExploitationOrganRemoval == true
//	country_name == "United States" && reporting_year >= 2000
type Where struct {
	Expr string `json:"expr"`

	once    sync.Once
	program *vm.Program
	columns []string
	err     error
}

func (w *Where) compile() (*vm.Program, []string, error) {
	w.once.Do(func() {
		tree, err := parser.Parse(w.Expr)
		if err != nil {
			w.err = err
			return
		}
		w.columns = referencedColumns(tree.Node)
		w.program, w.err = expr.Compile(w.Expr,
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
	})
	return w.program, w.columns, w.err
}

// columnRefs collects the variables an expression reads: bare identifiers
// and $env["..."] lookups. Function names and let-bound names are excluded.
type columnRefs struct {
	idents   []string
	env      []string
	callees  map[string]bool
	declared map[string]bool
}

func (c *columnRefs) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.idents = append(c.idents, n.Value)
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			c.callees[id.Value] = true
		}
	case *ast.VariableDeclaratorNode:
		c.declared[n.Name] = true
	case *ast.MemberNode:
		id, ok := n.Node.(*ast.IdentifierNode)
		if !ok || id.Value != "$env" {
			return
		}
		if p, ok := n.Property.(*ast.StringNode); ok {
			c.env = append(c.env, p.Value)
		}
	}
}

func referencedColumns(root ast.Node) []string {
	refs := &columnRefs{callees: map[string]bool{}, declared: map[string]bool{}}
	ast.Walk(&root, refs)
	var cols []string
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			cols = append(cols, name)
		}
	}
	for _, name := range refs.idents {
		if name == "$env" || refs.callees[name] || refs.declared[name] {
			continue
		}
		add(name)
	}
	for _, name := range refs.env {
		add(name)
	}
	return cols
}

// Apply implements transformer.Transformer. A row whose evaluation fails is
// an error, since it means the expression does not fit the data.
func (w *Where) Apply(in *table.Table) (*table.Table, error) {
	prog, cols, err := w.compile()
	if err != nil {
		return nil, fmt.Errorf("where %q: %w", w.Expr, err)
	}
	if err := in.RequireColumns(cols...); err != nil {
		return nil, fmt.Errorf("where %q: %w", w.Expr, err)
	}
	out := make([]records.Record, 0, in.Len())
	for i, r := range in.Rows {
		res, err := expr.Run(prog, map[string]any(r))
		if err != nil {
			return nil, fmt.Errorf("where %q: row %d: %w", w.Expr, i+1, err)
		}
		if keep, _ := res.(bool); keep {
			out = append(out, r)
		}
	}
	return in.WithRows(out), nil
}

// Equals keeps the rows whose Field, rendered as text, equals Value.
type Equals struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Apply implements transformer.Transformer.
func (e Equals) Apply(in *table.Table) (*table.Table, error) {
	if err := in.RequireColumns(e.Field); err != nil {
		return nil, fmt.Errorf("equals: %w", err)
	}
	return in.Filter(func(r records.Record) bool {
		v := r[e.Field]
		if v == nil {
			return false
		}
		if s, ok := v.(string); ok {
			return s == e.Value
		}
		return fmt.Sprint(v) == e.Value
	}), nil
}
