package tik

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// MappingConfig describes how raw records become comprehension records for
// one entity. A config may be partial; ResolveConfiguration merges partial
// configs from the implicit, explicit, and user layers into the final
// executing configuration.
//
// The merge is shallow and per-field: a later layer's field wins whenever it
// is set (non-zero), and map- or slice-valued fields are replaced wholesale
// rather than deep-merged. MultipleGUIDUniqueness is sticky: any layer
// setting it true turns fan-out on.
type MappingConfig struct {
	// Entity is the name of the record type being ingested, e.g. "Book".
	Entity string `json:"Entity,omitempty"`
	// GUIDName is the field the derived GUID is stored under. Defaults to
	// "GUID"+Entity after the merge.
	GUIDName string `json:"GUIDName,omitempty"`
	// GUIDTemplate derives the record GUID from the raw record.
	GUIDTemplate string `json:"GUIDTemplate,omitempty"`
	// Mappings maps output field names to templates expanded against the raw
	// record.
	Mappings map[string]string `json:"Mappings,omitempty"`
	// Solvers are opaque per-record rule descriptors handed to the Solver
	// collaborator before record insertion.
	Solvers []SolverRule `json:"Solvers,omitempty"`
	// MultipleGUIDUniqueness lets one raw record fan out into several entity
	// records, one per uniqueness string produced by the solver stage.
	MultipleGUIDUniqueness bool `json:"MultipleGUIDUniqueness,omitempty"`
}

// LoadMappingConfig reads a mapping configuration file (JSON).
func LoadMappingConfig(path string) (*MappingConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading mapping file %s", path)
	}
	cfg := &MappingConfig{}
	if err := json.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing mapping file %s", path)
	}
	return cfg, nil
}

// ResolveConfiguration merges partial configurations left to right, later
// layers winning per field. Callers pass implicit, explicit, user in that
// order; nil layers are skipped. If no layer names a GUID field, GUIDName
// defaults to "GUID"+Entity.
func ResolveConfiguration(layers ...*MappingConfig) *MappingConfig {
	out := &MappingConfig{}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if layer.Entity != "" {
			out.Entity = layer.Entity
		}
		if layer.GUIDName != "" {
			out.GUIDName = layer.GUIDName
		}
		if layer.GUIDTemplate != "" {
			out.GUIDTemplate = layer.GUIDTemplate
		}
		if layer.Mappings != nil {
			out.Mappings = layer.Mappings
		}
		if layer.Solvers != nil {
			out.Solvers = layer.Solvers
		}
		if layer.MultipleGUIDUniqueness {
			out.MultipleGUIDUniqueness = true
		}
	}
	if out.GUIDName == "" {
		out.GUIDName = "GUID" + out.Entity
	}
	return out
}

// GeneratePrototype derives an implicit mapping configuration from a dataset
// label and a representative record. The entity name is the label with each
// word capitalized and non-alphabetic characters stripped ("my favorite
// cats.csv" becomes "MyFavoriteCats"); the GUID template references the first
// field in column order (empty when the record has no fields); the mappings
// are identity templates, one per field.
//
// fieldOrder carries the record's column order for sources that have one
// (CSV/TSV headers). Pass nil for unordered sources; fields are then taken in
// sorted order so the prototype stays deterministic.
func GeneratePrototype(datasetLabel string, sample Record, fieldOrder []string) *MappingConfig {
	cfg := &MappingConfig{
		Entity:   EntityNameFromLabel(datasetLabel),
		Mappings: map[string]string{},
	}

	if fieldOrder == nil {
		fieldOrder = make([]string, 0, len(sample))
		for k := range sample {
			fieldOrder = append(fieldOrder, k)
		}
		sort.Strings(fieldOrder)
	}

	if len(fieldOrder) == 0 {
		cfg.GUIDTemplate = ""
	} else {
		cfg.GUIDTemplate = "GUID-" + cfg.Entity + "-{~Data:Record." + fieldOrder[0] + "~}"
	}

	for _, field := range fieldOrder {
		cfg.Mappings[field] = "{~Data:Record." + field + "~}"
	}
	return cfg
}

// EntityNameFromLabel turns a free-form dataset label (usually a file
// basename) into an entity name: each word is capitalized and everything
// non-alphabetic is dropped.
func EntityNameFromLabel(label string) string {
	var b strings.Builder
	startOfWord := true
	for _, r := range label {
		if !unicode.IsLetter(r) {
			startOfWord = true
			continue
		}
		if startOfWord {
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CreateRecordFromMapping produces a normalized record from a raw record and
// a resolved configuration. The result starts as a deep copy of prototype (or
// a fresh record), gets its GUID field from expanding GUIDTemplate against
// the raw record, and then one field per Mappings entry expanded the same
// way.
func CreateRecordFromMapping(t Templater, raw Record, cfg *MappingConfig, prototype Record) Record {
	var rec Record
	if prototype != nil {
		rec = prototype.Copy()
	} else {
		rec = Record{}
	}

	rec[cfg.GUIDName] = t.Expand(cfg.GUIDTemplate, raw)

	for field, tmpl := range cfg.Mappings {
		rec[field] = t.Expand(tmpl, raw)
	}
	return rec
}
