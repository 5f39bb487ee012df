package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"povclean/internal/config"
	"povclean/internal/table"
	"povclean/pkg/records"
)

func TestKindsMatchConfigValidator(t *testing.T) {
	t.Parallel()
	assert.ElementsMatch(t, config.KnownTransforms, Kinds())
}

func TestBuild_EveryKind(t *testing.T) {
	t.Parallel()

	env := Env{"meta": metaTable(), "other": table.New([]string{"k"}, nil)}
	opts := map[string]config.Options{
		"country_filter": {"metadata": "meta"},
		"join":           {"with": "other", "on": []any{"k"}},
		"where":          {"expr": "k == 1"},
		"melt":           {"id_columns": []any{"k"}},
		"count":          {"keys": []any{"k"}},
		"equals":         {"field": "k", "value": "1"},
		"sort":           {"keys": []any{"k"}},
	}
	for _, kind := range Kinds() {
		o := opts[kind]
		if o == nil {
			o = config.Options{}
		}
		step, err := Build(config.Transform{Kind: kind, Options: o}, env)
		require.NoError(t, err, kind)
		assert.NotNil(t, step, kind)
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	_, err := Build(config.Transform{Kind: "pivot"}, nil)
	require.ErrorIs(t, err, config.ErrUnknownTransform)

	_, err = Build(config.Transform{Kind: "melt", Options: config.Options{"id_colums": []any{"x"}}}, nil)
	require.Error(t, err, "unknown option keys are rejected")

	_, err = Build(config.Transform{Kind: "country_filter", Options: config.Options{"metadata": "meta"}}, Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not loaded")

	_, err = Build(config.Transform{Kind: "where", Options: config.Options{"expr": "(("}}, nil)
	require.Error(t, err)
}

func TestBuildChain_CombinesDatasets(t *testing.T) {
	t.Parallel()

	headcount := table.New([]string{"Country Name", "Country Code", "Year", "Headcount"}, []records.Record{
		{"Country Name": "United States", "Country Code": "USA", "Year": 2010, "Headcount": 1.0},
		{"Country Name": "Egypt", "Country Code": "EGY", "Year": 2011, "Headcount": 2.5},
	})
	cases := table.New([]string{"CountryOfExploitation", "yearOfRegistration", "typeOfExploitationOrganRemoval"}, []records.Record{
		{"CountryOfExploitation": "USA", "yearOfRegistration": "2010", "typeOfExploitationOrganRemoval": "1.0"},
		{"CountryOfExploitation": "USA", "yearOfRegistration": "2010", "typeOfExploitationOrganRemoval": "True"},
		{"CountryOfExploitation": "EGY", "yearOfRegistration": "2011", "typeOfExploitationOrganRemoval": "0"},
		{"CountryOfExploitation": "EGY", "yearOfRegistration": "2011", "typeOfExploitationOrganRemoval": ""},
	})
	env := Env{"headcount": headcount}

	chain, err := BuildChain([]config.Transform{
		{Kind: "coerce", Options: config.Options{
			"types":         map[string]any{"typeOfExploitationOrganRemoval": "bool", "yearOfRegistration": "int"},
			"null_on_error": true,
		}},
		{Kind: "where", Options: config.Options{"expr": "typeOfExploitationOrganRemoval == true"}},
		{Kind: "count", Options: config.Options{"keys": []any{"CountryOfExploitation", "yearOfRegistration"}, "as": "OrganCases"}},
		{Kind: "rename", Options: config.Options{"columns": map[string]any{
			"CountryOfExploitation": "Country Code",
			"yearOfRegistration":    "Year",
		}}},
		{Kind: "join", Options: config.Options{"with": "headcount", "on": []any{"Country Code", "Year"}, "drop_missing": true}},
	}, env)
	require.NoError(t, err)

	out, err := chain.Apply(cases)
	require.NoError(t, err)
	assert.Equal(t, []string{"Country Code", "Year", "OrganCases", "Country Name", "Headcount"}, out.Columns)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, records.Record{
		"Country Code": "USA", "Year": 2010, "OrganCases": 2,
		"Country Name": "United States", "Headcount": 1.0,
	}, out.Rows[0])
}

func TestBuildChain_ReportsStepIndex(t *testing.T) {
	t.Parallel()

	_, err := BuildChain([]config.Transform{{Kind: "sort"}, {Kind: "bogus"}}, nil)
	require.ErrorIs(t, err, config.ErrUnknownTransform)
	assert.Contains(t, err.Error(), "transform[1]")
}
