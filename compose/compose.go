// Package compose holds the comprehension post-processing operations:
// intersecting two comprehensions, unrolling an entity table to an array, and
// rendering records as CSV.
package compose

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
)

// IntersectMain contains the configuration for merging two comprehension
// files.
type IntersectMain struct {
	Primary   string `help:"Primary comprehension file."`
	Secondary string `help:"Secondary comprehension file; its fields win on overlapping GUIDs."`
	Entity    string `help:"Entity to intersect. Blank infers it when both files hold exactly one."`
	Output    string `help:"Output comprehension file."`
}

// NewIntersectMain gets an IntersectMain with defaults.
func NewIntersectMain() *IntersectMain {
	return &IntersectMain{Output: "Intersect-Comprehension.json"}
}

// Run intersects the two comprehensions and writes the result.
func (m *IntersectMain) Run() error {
	primary, err := tik.LoadComprehension(m.Primary)
	if err != nil {
		return errors.Wrap(err, "loading primary comprehension")
	}
	secondary, err := tik.LoadComprehension(m.Secondary)
	if err != nil {
		return errors.Wrap(err, "loading secondary comprehension")
	}
	out, err := tik.Intersect(primary, secondary, m.Entity)
	if err != nil {
		return errors.Wrap(err, "intersecting")
	}
	return errors.Wrapf(out.WriteFile(m.Output), "writing %s", m.Output)
}

// ArrayMain contains the configuration for unrolling one entity table into a
// JSON array of records.
type ArrayMain struct {
	Path   string `help:"Comprehension file to read."`
	Entity string `help:"Entity to unroll. Blank infers it when the file holds exactly one."`
	Output string `help:"Output JSON array file."`
}

// NewArrayMain gets an ArrayMain with defaults.
func NewArrayMain() *ArrayMain {
	return &ArrayMain{Output: "Comprehension-Array.json"}
}

// Run writes the entity's records as a JSON array.
func (m *ArrayMain) Run() error {
	records, err := loadEntityRecords(m.Path, m.Entity)
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(records, "", "\t")
	if err != nil {
		return errors.Wrap(err, "marshaling array")
	}
	return errors.Wrapf(os.WriteFile(m.Output, buf, 0644), "writing %s", m.Output)
}

// CSVMain contains the configuration for rendering records as CSV. The input
// may be a comprehension file or a bare JSON array of objects.
type CSVMain struct {
	Path   string `help:"Comprehension or JSON array file to read."`
	Entity string `help:"Entity to render when the input is a comprehension."`
	Output string `help:"Output CSV file."`
}

// NewCSVMain gets a CSVMain with defaults.
func NewCSVMain() *CSVMain {
	return &CSVMain{Output: "Comprehension.csv"}
}

// Run flattens the records and writes them as CSV with a sorted union
// header.
func (m *CSVMain) Run() error {
	records, err := loadEntityRecords(m.Path, m.Entity)
	if err != nil {
		return err
	}
	f, err := os.Create(m.Output)
	if err != nil {
		return errors.Wrapf(err, "creating %s", m.Output)
	}
	defer f.Close()
	return errors.Wrap(tik.WriteRecordsCSV(f, records), "writing CSV")
}

// loadEntityRecords reads path as a JSON array of objects, falling back to
// a comprehension unrolled at entity.
func loadEntityRecords(path, entity string) ([]tik.Record, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var records []tik.Record
	if err := json.Unmarshal(buf, &records); err == nil {
		return records, nil
	}
	var comp tik.Comprehension
	if err := json.Unmarshal(buf, &comp); err != nil {
		return nil, errors.Wrapf(err, "parsing %s as a comprehension or record array", path)
	}
	name, err := comp.InferEntity(entity)
	if err != nil {
		return nil, err
	}
	return comp.ToArray(name)
}
