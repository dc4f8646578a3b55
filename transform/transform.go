// Package transform wires file ingestion to the record mapping engine: each
// Main reads one tabular input (CSV, TSV, or a JSON array of objects), maps
// every record into a comprehension, and writes the result as JSON.
package transform

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
	"github.com/tabular-tools/tik/csv"
)

// Main contains the configuration for a tabular-to-comprehension transform.
type Main struct {
	Path         string `help:"Input file to transform."`
	Output       string `help:"Output file. Blank derives {Kind}-Comprehension-{input basename}.json."`
	Incoming     string `help:"Prior comprehension file to merge new records into."`
	MappingFile  string `help:"Mapping configuration (JSON) controlling entity, GUID template, and field mappings."`
	Entity       string `help:"Entity name override."`
	GUIDName     string `help:"Field name the derived GUID is stored under."`
	GUIDTemplate string `help:"Template deriving each record's GUID."`
	Columns      string `help:"Field mapping overrides as Field=Template pairs, comma separated."`
	Extended     bool   `help:"Write the full mapping outcome (configuration provenance, bad records) instead of the bare comprehension."`

	kind      string
	delimiter rune
}

// NewCSVMain gets a Main reading comma separated input.
func NewCSVMain() *Main {
	return &Main{kind: "CSV", delimiter: ','}
}

// NewTSVMain gets a Main reading tab separated input.
func NewTSVMain() *Main {
	return &Main{kind: "TSV", delimiter: '\t'}
}

// NewJSONArrayMain gets a Main reading a JSON array of objects.
func NewJSONArrayMain() *Main {
	return &Main{kind: "JSONArray"}
}

// Run transforms the input file and writes the comprehension.
func (m *Main) Run() error {
	outcome, err := m.Transform()
	if err != nil {
		return err
	}
	output := m.Output
	if output == "" {
		output = DeriveOutputPath(m.kind, m.Path)
	}
	return WriteOutcome(output, outcome, m.Extended)
}

// Transform runs the mapping engine over the input and returns the outcome
// without writing it. The REST surface uses this directly.
func (m *Main) Transform() (*tik.MappingOutcome, error) {
	outcome := tik.NewMappingOutcome()
	outcome.DatasetLabel = DatasetLabel(m.Path)

	if m.MappingFile != "" {
		cfg, err := tik.LoadMappingConfig(m.MappingFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading mapping configuration")
		}
		outcome.ExplicitConfiguration = cfg
	}
	user, err := m.userConfiguration()
	if err != nil {
		return nil, err
	}
	outcome.UserConfiguration = user

	if m.Incoming != "" {
		prior, err := tik.LoadComprehension(m.Incoming)
		if err != nil {
			return nil, errors.Wrap(err, "loading prior comprehension")
		}
		outcome.ExistingComprehension = prior
	}

	src, closer, err := m.source()
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := tik.NewTransformer().Run(src, outcome); err != nil {
		return nil, errors.Wrap(err, "transforming records")
	}
	return outcome, nil
}

func (m *Main) userConfiguration() (*tik.MappingConfig, error) {
	mappings, err := ParseColumnMappings(m.Columns)
	if err != nil {
		return nil, err
	}
	return &tik.MappingConfig{
		Entity:       m.Entity,
		GUIDName:     m.GUIDName,
		GUIDTemplate: m.GUIDTemplate,
		Mappings:     mappings,
	}, nil
}

func (m *Main) source() (tik.Source, interface{ Close() error }, error) {
	if m.kind == "JSONArray" {
		records, err := LoadRecordArray(m.Path)
		if err != nil {
			return nil, nil, err
		}
		return tik.NewSliceSource(records), nil, nil
	}
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", m.Path)
	}
	return csv.NewSource(f, csv.OptDelimiter(m.delimiter)), f, nil
}

// LoadRecordArray reads a JSON file that must contain an array of objects.
func LoadRecordArray(path string) ([]tik.Record, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var records []tik.Record
	if err := json.Unmarshal(buf, &records); err != nil {
		return nil, errors.Wrapf(err, "parsing %s as a JSON array of objects", path)
	}
	return records, nil
}

// ParseColumnMappings parses "Field=Template,Field=Template" overrides. An
// empty string is no overrides.
func ParseColumnMappings(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	mappings := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, errors.Errorf("malformed column mapping %q, want Field=Template", pair)
		}
		mappings[parts[0]] = parts[1]
	}
	return mappings, nil
}

// DatasetLabel derives the dataset label from an input path: the base name
// without its extension.
func DatasetLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DeriveOutputPath builds the default output filename next to the input.
func DeriveOutputPath(kind, inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), kind+"-Comprehension-"+DatasetLabel(inputPath)+".json")
}

// WriteOutcome persists a transform result: the bare comprehension, or the
// whole outcome when extended output is requested.
func WriteOutcome(path string, outcome *tik.MappingOutcome, extended bool) error {
	var out interface{} = outcome.Comprehension
	if extended {
		out = outcome
	}
	buf, err := json.MarshalIndent(out, "", "\t")
	if err != nil {
		return errors.Wrap(err, "marshaling outcome")
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
