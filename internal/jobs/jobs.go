// Package jobs holds the built-in cleaning pipelines. Paths are relative to
// the working directory, matching where the raw exports are unpacked.
package jobs

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"povclean/internal/config"
	"povclean/internal/schema"
	"povclean/internal/transformer/builtin"
)

// Job names.
const (
	DecileJob    = "decile"
	GDPJob       = "gdp"
	GINIJob      = "gini"
	HeadcountJob = "headcount"
	CombinedJob  = "headcount_trafficking"
)

// Top5 are the economies the GDP and headcount summaries single out.
var Top5 = []string{"USA", "CHN", "DEU", "JPN", "IND"}

var worldBankIDs = []string{"Country Name", "Country Code"}

// indicator builds the shared World Bank shape: country filter from the
// metadata file, melt of the year columns, drop of missing values.
func indicator(job, desc, metaPath, dataPath, value string, ids, years []string) config.Pipeline {
	melt := config.Options{
		"id_columns": lo.ToAnySlice(ids),
		"value_name": value,
	}
	if len(years) > 0 {
		melt["value_columns"] = lo.ToAnySlice(years)
	}
	return config.Pipeline{
		Job:         job,
		Description: desc,
		Sources: []config.Source{
			{Name: "metadata", Kind: "file", File: config.SourceFile{Path: metaPath}, Parser: csvParser(0)},
			{Name: "data", Kind: "file", File: config.SourceFile{Path: dataPath}, Parser: csvParser(4)},
		},
		From: "data",
		Transform: []config.Transform{
			{Kind: "country_filter", Options: config.Options{"metadata": "metadata"}},
			{Kind: "melt", Options: melt},
			{Kind: "require", Options: config.Options{"fields": []any{value}}},
		},
		Contract: &schema.Contract{
			Name: job,
			Fields: []schema.Field{
				{Name: "Country Name", Type: "text"},
				{Name: "Country Code", Type: "text"},
				{Name: "Year", Type: "int"},
				{Name: value, Type: "float"},
			},
		},
		Storage: csvStorage(job+"_cleaned.csv", "Country Code", "Year"),
		Report: config.Report{
			EntityColumn: "Country Code",
			YearColumn:   "Year",
			RangeColumns: []string{value},
			SampleRows:   5,
		},
	}
}

// GDP cleans the World Bank GDP (current US$) export.
func GDP() config.Pipeline {
	p := indicator(GDPJob, "GDP (current US$) per country and year",
		"Metadata_Country_API_NY.GDP.MKTP.CD_DS2_en_csv_v2_130122.csv",
		"API_NY.GDP.MKTP.CD_DS2_en_csv_v2_130122.csv",
		"GDP", worldBankIDs, nil)
	p.Report.SampleEntities = Top5
	return p
}

// GINI cleans the World Bank Gini index export.
func GINI() config.Pipeline {
	p := indicator(GINIJob, "Gini index per country and year",
		"GINI DATA/Metadata_Country_API_SI.POV.GINI_DS2_en_csv_v2_134799.csv",
		"GINI DATA/API_SI.POV.GINI_DS2_en_csv_v2_134799.csv",
		"GINI", worldBankIDs, nil)
	p.Report.CoverageLimit = 10
	return p
}

// Headcount cleans the poverty headcount ratio export. Year columns are the
// fixed range 1960..2024 and the indicator columns are dropped at the end.
func Headcount() config.Pipeline {
	p := indicator(HeadcountJob, "Poverty headcount ratio at $2.15 a day (% of population)",
		"Headcount/Metadata_Country_API_SI.POV.DDAY_DS2_en_csv_v2_128451.csv",
		"Headcount/API_SI.POV.DDAY_DS2_en_csv_v2_128451.csv",
		"Headcount",
		[]string{"Country Name", "Country Code", "Indicator Name", "Indicator Code"},
		builtin.YearRange(1960, 2024))
	p.Transform = append(p.Transform, config.Transform{
		Kind:    "select",
		Options: config.Options{"columns": []any{"Country Name", "Country Code", "Year", "Headcount"}},
	})
	p.Report.SampleEntities = Top5
	p.Report.YearCounts = 20
	return p
}

// Decile extracts the United States rows of the poverty and inequality
// platform export. Rows are kept even when a decile share is missing.
func Decile() config.Pipeline {
	deciles := make([]string, 10)
	types := map[string]any{"reporting_year": "int"}
	fields := []schema.Field{
		{Name: "country_name", Type: "text"},
		{Name: "reporting_year", Type: "int", Nullable: true},
		{Name: "welfare_type", Type: "text", Nullable: true},
	}
	for i := range deciles {
		deciles[i] = fmt.Sprintf("decile%d", i+1)
		types[deciles[i]] = "float"
		fields = append(fields, schema.Field{Name: deciles[i], Type: "float", Nullable: true})
	}
	columns := append([]string{"country_name", "reporting_year", "welfare_type"}, deciles...)

	return config.Pipeline{
		Job:         DecileJob,
		Description: "United States income share by decile",
		Sources: []config.Source{
			{Name: "deciles", Kind: "file", File: config.SourceFile{Path: "Decile/povertyinequality.csv"}, Parser: csvParser(0)},
		},
		Transform: []config.Transform{
			{Kind: "equals", Options: config.Options{"field": "country_name", "value": "United States"}},
			{Kind: "select", Options: config.Options{"columns": lo.ToAnySlice(columns)}},
			{Kind: "coerce", Options: config.Options{"types": types, "null_on_error": true}},
		},
		Contract: &schema.Contract{Name: DecileJob, Fields: fields},
		Storage:  csvStorage("us_decile_cleaned.csv", "reporting_year"),
		Report: config.Report{
			YearColumn: "reporting_year",
			SampleRows: 10,
			Deciles:    "decile",
		},
	}
}

// HeadcountTrafficking joins organ-removal trafficking case counts with the
// cleaned headcount output. It reads headcount_cleaned.csv, so it runs after
// Headcount.
func HeadcountTrafficking() config.Pipeline {
	return config.Pipeline{
		Job:         CombinedJob,
		Description: "Organ removal trafficking cases joined with poverty headcount",
		Sources: []config.Source{
			{
				Name:   "cases",
				Kind:   "file",
				File:   config.SourceFile{Path: "CTDC_global_synthetic_data_v2025_v2.csv"},
				Parser: csvParser(0),
				Transform: []config.Transform{
					{Kind: "coerce", Options: config.Options{
						"types": map[string]any{
							"typeOfExploitationOrganRemoval": "bool",
							"yearOfRegistration":             "int",
						},
						"null_on_error": true,
					}},
					{Kind: "where", Options: config.Options{"expr": "typeOfExploitationOrganRemoval == true"}},
					{Kind: "count", Options: config.Options{
						"keys": []any{"CountryOfExploitation", "yearOfRegistration"},
						"as":   "OrganCases",
					}},
					{Kind: "rename", Options: config.Options{"columns": map[string]any{
						"CountryOfExploitation": "Country Code",
						"yearOfRegistration":    "Year",
					}}},
				},
			},
			{
				Name:   "headcount",
				Kind:   "file",
				File:   config.SourceFile{Path: "headcount_cleaned.csv"},
				Parser: csvParser(0),
				Transform: []config.Transform{
					{Kind: "coerce", Options: config.Options{
						"types":         map[string]any{"Year": "int", "Headcount": "float"},
						"null_on_error": true,
					}},
				},
			},
		},
		From: "headcount",
		Transform: []config.Transform{
			{Kind: "join", Options: config.Options{
				"with":         "cases",
				"on":           []any{"Country Code", "Year"},
				"drop_missing": true,
			}},
		},
		Contract: &schema.Contract{
			Name: CombinedJob,
			Fields: []schema.Field{
				{Name: "Country Name", Type: "text"},
				{Name: "Country Code", Type: "text"},
				{Name: "Year", Type: "int"},
				{Name: "Headcount", Type: "float"},
				{Name: "OrganCases", Type: "int"},
			},
		},
		Storage: csvStorage("headcount_trafficking_combined.csv", "Year", "Country Name"),
		Report: config.Report{
			EntityColumn: "Country Code",
			YearColumn:   "Year",
			RangeColumns: []string{"OrganCases", "Headcount"},
			SampleRows:   10,
		},
	}
}

// All returns every built-in job in an order that satisfies Dependencies.
func All() []config.Pipeline {
	return []config.Pipeline{Decile(), GDP(), GINI(), Headcount(), HeadcountTrafficking()}
}

// Named returns the built-in job called name.
func Named(name string) (config.Pipeline, bool) {
	return lo.Find(All(), func(p config.Pipeline) bool { return p.Job == name })
}

// Names returns the built-in job names, sorted.
func Names() []string {
	names := lo.Map(All(), func(p config.Pipeline, _ int) string { return p.Job })
	sort.Strings(names)
	return names
}

// Dependencies maps each job to the jobs whose output it reads. A job depends
// on another when one of its source paths is the other's output path.
func Dependencies(ps []config.Pipeline) map[string][]string {
	producers := make(map[string]string, len(ps))
	for _, p := range ps {
		producers[p.Storage.CSV.Path] = p.Job
	}
	deps := make(map[string][]string, len(ps))
	for _, p := range ps {
		var ds []string
		for _, s := range p.Sources {
			if prod, ok := producers[s.File.Path]; ok && prod != p.Job {
				ds = append(ds, prod)
			}
		}
		deps[p.Job] = lo.Uniq(ds)
	}
	return deps
}

func csvParser(skip int) config.Parser {
	opts := config.Options{"has_header": true}
	if skip > 0 {
		opts["skip_rows"] = skip
	}
	return config.Parser{Kind: "csv", Options: opts}
}

func csvStorage(path string, sortBy ...string) config.Storage {
	return config.Storage{Kind: "csv", CSV: config.StorageCSV{Path: path}, SortBy: sortBy}
}
