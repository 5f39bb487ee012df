package join

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"povclean/internal/table"
	"povclean/pkg/records"
)

var on = []string{"Country Code", "Year"}

func headcount(rows ...records.Record) *table.Table {
	return table.New([]string{"Country Name", "Country Code", "Year", "Headcount"}, rows)
}

func cases(rows ...records.Record) *table.Table {
	return table.New([]string{"Country Code", "Year", "OrganCases"}, rows)
}

func TestInner_DisjointYearsYieldNothing(t *testing.T) {
	t.Parallel()

	a := headcount(records.Record{"Country Name": "United States", "Country Code": "USA", "Year": 2010, "Headcount": 50.0})
	b := cases(records.Record{"Country Code": "USA", "Year": 2011, "OrganCases": 3})

	out, err := Inner(a, b, Options{On: on, DropMissing: true})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []string{"Country Name", "Country Code", "Year", "Headcount", "OrganCases"}, out.Columns)
}

func TestInner_MatchingKey(t *testing.T) {
	t.Parallel()

	a := headcount(records.Record{"Country Name": "United States", "Country Code": "USA", "Year": 2010, "Headcount": 50.0})
	b := cases(records.Record{"Country Code": "USA", "Year": 2010, "OrganCases": 3})

	out, err := Inner(a, b, Options{On: on, DropMissing: true})
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []any{"United States", "USA", 2010, 50.0, 3}, out.Row(0))
}

func TestInner_KeyTypesNormalized(t *testing.T) {
	t.Parallel()

	a := headcount(records.Record{"Country Name": "Chile", "Country Code": "CHL", "Year": 2015, "Headcount": 0.4})
	b := cases(records.Record{"Country Code": "CHL", "Year": 2015.0, "OrganCases": 1})

	out, err := Inner(a, b, Options{On: on})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

func TestInner_DropMissing(t *testing.T) {
	t.Parallel()

	a := headcount(
		records.Record{"Country Name": nil, "Country Code": "USA", "Year": 2010, "Headcount": 50.0},
		records.Record{"Country Name": "Peru", "Country Code": "PER", "Year": 2010, "Headcount": 3.1},
	)
	b := cases(
		records.Record{"Country Code": "USA", "Year": 2010, "OrganCases": 3},
		records.Record{"Country Code": "PER", "Year": 2010, "OrganCases": 2},
	)

	kept, err := Inner(a, b, Options{On: on})
	require.NoError(t, err)
	assert.Equal(t, 2, kept.Len())

	dropped, err := Inner(a, b, Options{On: on, DropMissing: true})
	require.NoError(t, err)
	require.Equal(t, 1, dropped.Len())
	assert.Equal(t, "PER", dropped.Rows[0]["Country Code"])
}

func TestInner_Commutative(t *testing.T) {
	t.Parallel()

	a := headcount(
		records.Record{"Country Name": "United States", "Country Code": "USA", "Year": 2010, "Headcount": 1.0},
		records.Record{"Country Name": "United States", "Country Code": "USA", "Year": 2011, "Headcount": 1.1},
		records.Record{"Country Name": "Peru", "Country Code": "PER", "Year": 2010, "Headcount": 3.0},
		records.Record{"Country Name": "Chile", "Country Code": "CHL", "Year": 2012, "Headcount": 0.2},
	)
	b := cases(
		records.Record{"Country Code": "USA", "Year": 2011, "OrganCases": 4},
		records.Record{"Country Code": "CHL", "Year": 2012, "OrganCases": 1},
		records.Record{"Country Code": "BRA", "Year": 2012, "OrganCases": 7},
	)

	ab, err := Inner(a, b, Options{On: on, DropMissing: true})
	require.NoError(t, err)
	ba, err := Inner(b, a, Options{On: on, DropMissing: true})
	require.NoError(t, err)

	assert.Equal(t, ab.Len(), ba.Len())
	assert.Equal(t, keys(t, ab), keys(t, ba))
	assert.ElementsMatch(t, ab.Columns, ba.Columns)
}

func TestInner_ColumnCollisionAndDuplicates(t *testing.T) {
	t.Parallel()

	l := table.New([]string{"k", "v"}, []records.Record{{"k": "a", "v": 1}})
	r := table.New([]string{"k", "v"}, []records.Record{{"k": "a", "v": 2}, {"k": "a", "v": 3}})

	out, err := Inner(l, r, Options{On: []string{"k"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "v", "v_right"}, out.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, 2, out.Rows[0]["v_right"])
	assert.Equal(t, 3, out.Rows[1]["v_right"])
}

func TestInner_SchemaMismatch(t *testing.T) {
	t.Parallel()

	_, err := Inner(headcount(), table.New([]string{"Country Code"}, nil), Options{On: on})
	require.ErrorIs(t, err, table.ErrMissingColumn)

	_, err = Inner(headcount(), cases(), Options{})
	require.Error(t, err)
}

func keys(t *testing.T, tbl *table.Table) []string {
	t.Helper()
	var out []string
	for _, r := range tbl.Rows {
		k, ok := table.Key(r, on)
		require.True(t, ok)
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
