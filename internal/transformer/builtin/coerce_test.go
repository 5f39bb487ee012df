package builtin

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"povclean/internal/table"
	"povclean/pkg/records"
)

func coerceTable(rows ...records.Record) *table.Table {
	return table.New([]string{"i", "f", "b", "d", "s"}, rows)
}

/*
TestCoerceApply_Basics verifies that Coerce.Apply converts string values to
int, float, bool and date, and leaves strings alone for type "string".
*/
func TestCoerceApply_Basics(t *testing.T) {
	layout := "2006-01-02"
	c := Coerce{
		Types: map[string]string{
			"i": "int",
			"f": "float",
			"b": "bool",
			"d": "date",
			"s": "string",
		},
		Layout: layout,
	}

	out, err := c.Apply(coerceTable(records.Record{
		"i": "42",
		"f": " 1.5 ",
		"b": "1.0",
		"d": "2025-11-09",
		"s": "hello",
	}))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	r := out.Rows[0]

	if v, ok := r["i"].(int); !ok || v != 42 {
		t.Fatalf(`"i" got %#v (type %T); want int(42)`, r["i"], r["i"])
	}
	if v, ok := r["f"].(float64); !ok || v != 1.5 {
		t.Fatalf(`"f" got %#v (type %T); want float64(1.5)`, r["f"], r["f"])
	}
	if v, ok := r["b"].(bool); !ok || v != true {
		t.Fatalf(`"b" got %#v (type %T); want bool(true)`, r["b"], r["b"])
	}
	if v, ok := r["d"].(time.Time); !ok || v.Format(layout) != "2025-11-09" {
		t.Fatalf(`"d" got %#v (type %T); want time.Time(2025-11-09)`, r["d"], r["d"])
	}
	if v, ok := r["s"].(string); !ok || v != "hello" {
		t.Fatalf(`"s" got %#v (type %T); want string("hello")`, r["s"], r["s"])
	}
}

/*
TestCoerceApply_IntegralFloatToInt covers year columns written as "2010.0"
by tools that promoted the column to float.
*/
func TestCoerceApply_IntegralFloatToInt(t *testing.T) {
	c := Coerce{Types: map[string]string{"i": "int"}}
	out, err := c.Apply(coerceTable(
		records.Record{"i": "2010.0"},
		records.Record{"i": 2011.0},
		records.Record{"i": "2012.5"},
	))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Rows[0]["i"] != 2010 || out.Rows[1]["i"] != 2011 {
		t.Fatalf("got %#v, %#v; want 2010, 2011", out.Rows[0]["i"], out.Rows[1]["i"])
	}
	if out.Rows[2]["i"] != "2012.5" {
		t.Fatalf("non-integral value should stay as-is; got %#v", out.Rows[2]["i"])
	}
}

/*
TestCoerceApply_InvalidsPreserve verifies that when parsing fails, the original
string value is left unchanged.
*/
func TestCoerceApply_InvalidsPreserve(t *testing.T) {
	c := Coerce{
		Types:  map[string]string{"i": "int", "b": "bool", "d": "date"},
		Layout: "2006-01-02",
	}
	in := coerceTable(records.Record{"i": "not-an-int", "b": "nope", "d": "11/09/2025"})
	orig := deepCopy(in.Rows)

	out, err := c.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(out.Rows, orig) {
		t.Fatalf("invalid values should remain unchanged:\n got: %#v\nwant: %#v", out.Rows, orig)
	}
}

/*
TestCoerceApply_NullOnError verifies that unparsable cells become nil when
NullOnError is set, so a later require step drops them.
*/
func TestCoerceApply_NullOnError(t *testing.T) {
	c := Coerce{Types: map[string]string{"i": "int"}, NullOnError: true}
	out, err := c.Apply(coerceTable(records.Record{"i": "x"}, records.Record{"i": "1"}))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Rows[0]["i"] != nil {
		t.Fatalf(`"i" got %#v; want nil`, out.Rows[0]["i"])
	}
	if out.Rows[1]["i"] != 1 {
		t.Fatalf(`"i" got %#v; want 1`, out.Rows[1]["i"])
	}
}

/*
TestCoerceApply_MissingNilNonString verifies that optional missing fields and
nil values are ignored and already-typed values are left untouched.
*/
func TestCoerceApply_MissingNilNonString(t *testing.T) {
	c := Coerce{
		Types:    map[string]string{"a": "int", "b": "bool", "c": "date"},
		Layout:   "2006-01-02",
		Optional: true,
	}
	tm := time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)
	in := table.New([]string{"b", "c", "x"}, []records.Record{
		{"b": nil, "c": tm, "x": 123},
	})
	orig := deepCopy(in.Rows)

	out, err := c.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(out.Rows, orig) {
		t.Fatalf("non-string/missing/nil should be unchanged:\n got: %#v\nwant: %#v", out.Rows, orig)
	}
}

/*
TestCoerceApply_MissingColumnIsError verifies that a typed field the table
does not have fails the step instead of passing rows through untyped.
*/
func TestCoerceApply_MissingColumnIsError(t *testing.T) {
	c := Coerce{Types: map[string]string{"typeOfExploitationOrganRemoval": "bool"}, NullOnError: true}
	in := table.New([]string{"typeOfExploitationOrganRemovl"}, []records.Record{
		{"typeOfExploitationOrganRemovl": "1"},
	})

	_, err := c.Apply(in)
	if !errors.Is(err, table.ErrMissingColumn) {
		t.Fatalf("Apply error = %v; want ErrMissingColumn", err)
	}
}

/*
TestCoerceApply_BoolFlags covers exploitation flags exported as True, 1 and
1.0 in the same column.
*/
func TestCoerceApply_BoolFlags(t *testing.T) {
	c := Coerce{Types: map[string]string{"b": "bool"}, NullOnError: true}
	out, err := c.Apply(coerceTable(
		records.Record{"b": "True"},
		records.Record{"b": "1"},
		records.Record{"b": "1.0"},
		records.Record{"b": "0"},
		records.Record{"b": "x"},
	))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []any{true, true, true, false, nil}
	for i, w := range want {
		if out.Rows[i]["b"] != w {
			t.Fatalf("row %d: got %#v; want %#v", i, out.Rows[i]["b"], w)
		}
	}
}

/*
TestCoerceApply_DoesNotMutateInput verifies that Apply copies the records it
changes and leaves the input table intact.
*/
func TestCoerceApply_DoesNotMutateInput(t *testing.T) {
	c := Coerce{Types: map[string]string{"i": "int"}}
	in := coerceTable(records.Record{"i": "7", "keep": "v"})

	out, err := c.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if in.Rows[0]["i"] != "7" {
		t.Fatalf("input mutated: %#v", in.Rows[0])
	}
	if out.Rows[0]["i"] != 7 || out.Rows[0]["keep"] != "v" {
		t.Fatalf("output = %#v; want i=7 keep=v", out.Rows[0])
	}
}

/*
TestCoerceApply_TypeNamesCaseInsensitive documents that type names are
matched case-insensitively and unknown names are ignored.
*/
func TestCoerceApply_TypeNamesCaseInsensitive(t *testing.T) {
	c := Coerce{Types: map[string]string{"i": "Int", "f": "decimal"}}
	out, err := c.Apply(coerceTable(records.Record{"i": "5", "f": "2.5"}))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Rows[0]["i"] != 5 {
		t.Fatalf(`"i" got %#v; want 5`, out.Rows[0]["i"])
	}
	if out.Rows[0]["f"] != "2.5" {
		t.Fatalf(`unrecognized type should be ignored; got %#v`, out.Rows[0]["f"])
	}
}

/*
TestCoerceApply_EmptyTypesIsNoop verifies that an empty Types map returns the
input table as-is.
*/
func TestCoerceApply_EmptyTypesIsNoop(t *testing.T) {
	c := Coerce{}
	in := coerceTable(records.Record{"i": "1"})
	out, err := c.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != in {
		t.Fatalf("empty Types should return the input table")
	}
}

// --- test helpers ---

// deepCopy makes a shallow slice copy and shallow map copies for comparison.
func deepCopy(in []records.Record) []records.Record {
	out := make([]records.Record, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

/*
BenchmarkCoerce_MixedFailures alternates coercible and unparsable inputs.
*/
func BenchmarkCoerce_MixedFailures(b *testing.B) {
	c := Coerce{
		Types:       map[string]string{"i": "int", "f": "float"},
		NullOnError: true,
	}

	const N = 30000
	rows := make([]records.Record, N)
	for i := 0; i < N; i++ {
		valI, valF := strconv.Itoa(i), "1.25"
		if i%2 == 1 {
			valI, valF = "x", ".."
		}
		rows[i] = records.Record{"i": valI, "f": valF}
	}
	in := table.New([]string{"i", "f"}, rows)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := c.Apply(in); err != nil {
			b.Fatal(err)
		}
	}
}
