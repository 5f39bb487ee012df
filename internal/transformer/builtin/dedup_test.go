package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"povclean/internal/table"
	"povclean/pkg/records"
)

func mk(code string, year any, fields map[string]any) records.Record {
	r := records.Record{
		"Country Code": code,
		"Year":         year,
	}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func dedupTable(rows ...records.Record) *table.Table {
	return table.New([]string{"Country Code", "Year", "GDP", "note"}, rows)
}

var dedupKeys = []string{"Country Code", "Year"}

func TestDeDupKeepFirst(t *testing.T) {
	in := dedupTable(
		mk("ABW", 2010, map[string]any{"GDP": 1.0}),
		mk("ABW", 2010, map[string]any{"GDP": 2.0}),
		mk("AFG", 2010, map[string]any{"GDP": 3.0}),
	)
	got, err := DeDup{Keys: dedupKeys, Policy: "keep-first"}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []records.Record{
		mk("ABW", 2010, map[string]any{"GDP": 1.0}),
		mk("AFG", 2010, map[string]any{"GDP": 3.0}),
	}, got.Rows)
}

func TestDeDupKeepLastIsDefault(t *testing.T) {
	in := dedupTable(
		mk("ABW", 2010, map[string]any{"GDP": 1.0}),
		mk("ABW", 2010, map[string]any{"GDP": 2.0}),
		mk("AFG", 2010, map[string]any{"GDP": 3.0}),
	)
	got, err := DeDup{Keys: dedupKeys}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []records.Record{
		mk("ABW", 2010, map[string]any{"GDP": 2.0}),
		mk("AFG", 2010, map[string]any{"GDP": 3.0}),
	}, got.Rows)
}

func TestDeDupMostComplete(t *testing.T) {
	in := dedupTable(
		mk("ABW", 2010, map[string]any{"GDP": 1.0, "note": "x"}),
		mk("ABW", 2010, map[string]any{"GDP": 2.0, "note": ""}),
		mk("AFG", 2010, map[string]any{"GDP": 3.0}),
	)
	got, err := DeDup{Keys: dedupKeys, Policy: "most-complete"}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []records.Record{
		mk("ABW", 2010, map[string]any{"GDP": 1.0, "note": "x"}),
		mk("AFG", 2010, map[string]any{"GDP": 3.0}),
	}, got.Rows)
}

func TestDeDupNumericKeysMatchAcrossTypes(t *testing.T) {
	in := dedupTable(
		mk("ABW", 2010, map[string]any{"GDP": 1.0}),
		mk("ABW", 2010.0, map[string]any{"GDP": 2.0}),
	)
	got, err := DeDup{Keys: dedupKeys}.Apply(in)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, 2.0, got.Rows[0]["GDP"])
}

func TestDeDupMissingKeyPassesThrough(t *testing.T) {
	in := dedupTable(
		mk("ABW", nil, map[string]any{"GDP": 1.0}),
		mk("ABW", nil, map[string]any{"GDP": 2.0}),
		mk("AFG", 2010, map[string]any{"GDP": 3.0}),
	)
	got, err := DeDup{Keys: dedupKeys}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"AFG", "ABW", "ABW"}, codes(got, "Country Code"))
}

func TestDeDupUnknownKey(t *testing.T) {
	_, err := DeDup{Keys: []string{"nope"}}.Apply(dedupTable(mk("ABW", 2010, nil)))
	require.ErrorIs(t, err, table.ErrMissingColumn)
}
