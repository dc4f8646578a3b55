package tik

import "io"

// Source is the interface for getting raw records one at a time. Record
// returns io.EOF when the source is exhausted. Columns reports the column
// order of the records, for sources that have one (CSV/TSV headers); sources
// without an inherent order return nil.
type Source interface {
	Record() (Record, error)
	Columns() []string
}

// SliceSource serves records from an in-memory slice. Useful for the JSON
// array transform (which loads the whole array up front) and for tests.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource wraps records in a Source.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// Record implements Source.
func (s *SliceSource) Record() (Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

// Columns implements Source; slice records carry no column order.
func (s *SliceSource) Columns() []string { return nil }
