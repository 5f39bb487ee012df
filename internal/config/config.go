// Package config defines the JSON-serializable description of a cleaning
// pipeline. A Pipeline names its input sources, the ordered steps applied to
// them, the output contract and the CSV sink, so the same runner can execute
// any of the built-in jobs or a pipeline file from disk.
//
// Example (trimmed):
//
//	{
//	  "job": "gdp",
//	  "sources": [
//	    { "name": "meta", "file": { "path": "Metadata_Country.csv" } },
//	    { "name": "data", "file": { "path": "API_NY.GDP.csv" },
//	      "parser": { "kind": "csv", "options": { "has_header": true, "skip_rows": 4 } } }
//	  ],
//	  "from": "data",
//	  "transform": [
//	    { "kind": "country_filter", "options": { "metadata": "meta" } },
//	    { "kind": "melt", "options": { "id_columns": ["Country Name", "Country Code"], "value_name": "GDP" } }
//	  ],
//	  "storage": { "kind": "csv", "csv": { "path": "gdp_cleaned.csv" }, "sort_by": ["Country Code", "Year"] }
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"povclean/internal/schema"
)

// ErrUnknownTransform is returned when a step kind has no implementation.
var ErrUnknownTransform = errors.New("unknown transform kind")

// Pipeline describes one cleaning job end to end.
type Pipeline struct {
	// Job names the run in logs, metrics and summaries.
	Job string `json:"job"`

	// Description is printed above the run summary.
	Description string `json:"description,omitempty"`

	// Sources are loaded in order. Each may carry its own transform chain;
	// later sources and steps can refer to earlier ones by name.
	Sources []Source `json:"sources"`

	// From names the source the main transform chain starts from. Defaults to
	// the last source.
	From string `json:"from,omitempty"`

	// Transform lists the ordered steps applied to the From table.
	Transform []Transform `json:"transform"`

	// Contract, when set, is checked before anything is written.
	Contract *schema.Contract `json:"contract,omitempty"`

	// Storage describes where the cleaned table is written.
	Storage Storage `json:"storage"`

	// Report configures the human-readable summary.
	Report Report `json:"report"`
}

// Source identifies one input table.
type Source struct {
	// Name is how steps refer to this table.
	Name string `json:"name"`

	// Kind selects the source implementation: "file" (default) or "http".
	Kind string `json:"kind"`

	// File carries options for the "file" source kind.
	File SourceFile `json:"file"`

	// HTTP carries options for the "http" source kind.
	HTTP *SourceHTTP `json:"http,omitempty"`

	// Parser configures how the raw bytes become a table.
	Parser Parser `json:"parser"`

	// Transform is applied to this source right after parsing.
	Transform []Transform `json:"transform,omitempty"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind: a CSV fetched
// with GET.
type SourceHTTP struct {
	URL string `json:"url"`
	// MaxRetries is the number of retries after the first attempt on
	// transport errors, 429 and 5xx responses.
	MaxRetries int `json:"max_retries,omitempty"`
	// TimeoutSeconds bounds each attempt. Default 30.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	// Headers are sent with every attempt.
	Headers map[string]string `json:"headers,omitempty"`
}

// Location returns the path or URL the source reads from.
func (s Source) Location() string {
	if s.Kind == "http" && s.HTTP != nil {
		return s.HTTP.URL
	}
	return s.File.Path
}

// Parser selects how to parse a source.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options for CSV: has_header (bool), comma (string), trim_space (bool),
	// skip_rows (int), expected_fields (int), header_map (object),
	// snake_case (bool).
	Options Options `json:"options"`
}

// Transform defines a single step. Kind selects the implementation and
// Options is decoded into that implementation's settings.
type Transform struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options"`
}

// Storage selects the sink for the cleaned table.
type Storage struct {
	// Kind selects the sink implementation. Current value: "csv".
	Kind string `json:"kind"`

	// CSV carries options for the "csv" sink.
	CSV StorageCSV `json:"csv"`

	// SortBy orders the rows (ascending, stable) right before writing.
	SortBy []string `json:"sort_by"`
}

// StorageCSV configures the CSV sink.
type StorageCSV struct {
	Path  string `json:"path"`
	Comma string `json:"comma,omitempty"`
}

// Report configures the run summary printed to stdout.
type Report struct {
	// EntityColumn and YearColumn drive entity counts and year ranges.
	EntityColumn string `json:"entity_column,omitempty"`
	YearColumn   string `json:"year_column,omitempty"`

	// RangeColumns get a min/max line each.
	RangeColumns []string `json:"range_columns,omitempty"`

	// SampleEntities, when set, get a per-entity year coverage table;
	// otherwise the first CoverageLimit entities are shown.
	SampleEntities []string `json:"sample_entities,omitempty"`
	CoverageLimit  int      `json:"coverage_limit,omitempty"`

	// YearCounts prints the number of rows per year for the latest N years.
	YearCounts int `json:"year_counts,omitempty"`

	// SampleRows prints the first N rows.
	SampleRows int `json:"sample_rows,omitempty"`

	// Deciles prints the decile distribution of the last row for the
	// columns with this prefix (e.g. "decile").
	Deciles string `json:"deciles,omitempty"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// Decode copies the options into out, a pointer to a struct whose fields are
// tagged with their JSON option names. Unknown keys are an error so typos in
// pipeline files surface early.
func (o Options) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("options decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(o)); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}

// UnmarshalJSON makes a missing or null "options" object decode to a non-nil,
// empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// SourceNamed returns the source called name.
func (p Pipeline) SourceNamed(name string) (Source, bool) {
	for _, s := range p.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// MainSource returns the name of the table the main chain starts from.
func (p Pipeline) MainSource() string {
	if p.From != "" {
		return p.From
	}
	if len(p.Sources) == 0 {
		return ""
	}
	return p.Sources[len(p.Sources)-1].Name
}
