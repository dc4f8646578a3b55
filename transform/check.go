package transform

import (
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
	"github.com/tabular-tools/tik/csv"
)

// CheckMain contains the configuration for a tabular sanity check: a single
// streaming pass gathering per-column statistics without building a
// comprehension.
type CheckMain struct {
	Path    string `help:"Input file to check."`
	Output  string `help:"Write statistics JSON here. Blank logs a summary instead."`
	Records bool   `help:"Keep every parsed record in the statistics output."`

	delimiter rune
}

// NewCSVCheckMain gets a CheckMain for comma separated input.
func NewCSVCheckMain() *CheckMain {
	return &CheckMain{delimiter: ','}
}

// NewTSVCheckMain gets a CheckMain for tab separated input.
func NewTSVCheckMain() *CheckMain {
	return &CheckMain{delimiter: '\t'}
}

// Run checks the input file.
func (m *CheckMain) Run() error {
	stats, err := m.Check()
	if err != nil {
		return err
	}
	if m.Output == "" {
		log.Printf("%s: %d rows, %d columns", stats.DataSet, stats.RowCount, stats.ColumnCount)
		for _, header := range stats.Headers {
			col := stats.ColumnStatistics[header]
			log.Printf("  %s: %d values, %d empty, %d numeric", header, col.Count, col.EmptyCount, col.NumericCount)
		}
		return nil
	}
	buf, err := json.MarshalIndent(stats, "", "\t")
	if err != nil {
		return errors.Wrap(err, "marshaling statistics")
	}
	return errors.Wrapf(os.WriteFile(m.Output, buf, 0644), "writing %s", m.Output)
}

// Check runs the statistics pass and returns the result.
func (m *CheckMain) Check() (*tik.Statistics, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", m.Path)
	}
	defer f.Close()

	src := csv.NewSource(f, csv.OptDelimiter(m.delimiter))
	stats := tik.NewStatistics(DatasetLabel(m.Path))
	stats.StoreRecords = m.Records
	for {
		rec, err := src.Record()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading record")
		}
		stats.Collect(rec, src.Columns())
	}
}
