package tik

import (
	"github.com/spf13/cast"
)

// ColumnStats accumulates per-column statistics across a tabular dataset.
type ColumnStats struct {
	Count        int         `json:"Count"`
	EmptyCount   int         `json:"EmptyCount"`
	NumericCount int         `json:"NumericCount"`
	FirstValue   interface{} `json:"FirstValue"`
	LastValue    interface{} `json:"LastValue"`
}

// Statistics describes a tabular dataset: row and column counts, headers in
// first-seen order, per-column stats, and optionally the full record dump.
type Statistics struct {
	DataSet          string                  `json:"DataSet"`
	FirstRow         Record                  `json:"FirstRow"`
	RowCount         int                     `json:"RowCount"`
	LastRow          Record                  `json:"LastRow"`
	Headers          []string                `json:"Headers"`
	ColumnCount      int                     `json:"ColumnCount"`
	ColumnStatistics map[string]*ColumnStats `json:"ColumnStatistics"`
	Records          []Record                `json:"Records,omitempty"`

	// StoreRecords controls whether Collect keeps every record in Records.
	StoreRecords bool `json:"-"`
}

// NewStatistics returns an empty statistics container for the named dataset.
func NewStatistics(dataset string) *Statistics {
	return &Statistics{
		DataSet:          dataset,
		Headers:          []string{},
		ColumnStatistics: map[string]*ColumnStats{},
	}
}

// Collect folds one record into the statistics. Callers are responsible for
// sending each record through only once. fieldOrder fixes the order columns
// are first registered in; pass nil for unordered records.
func (s *Statistics) Collect(rec Record, fieldOrder []string) {
	if rec == nil {
		return
	}
	s.RowCount++
	if s.FirstRow == nil {
		s.FirstRow = rec
	}
	s.LastRow = rec

	if fieldOrder == nil {
		fieldOrder = make([]string, 0, len(rec))
		for k := range rec {
			fieldOrder = append(fieldOrder, k)
		}
	}
	for _, key := range fieldOrder {
		val, present := rec[key]
		if !present {
			continue
		}
		col, ok := s.ColumnStatistics[key]
		if !ok {
			col = &ColumnStats{}
			s.ColumnStatistics[key] = col
			s.Headers = append(s.Headers, key)
			s.ColumnCount++
		}
		col.Count++
		if col.FirstValue == nil {
			col.FirstValue = val
		}
		col.LastValue = val
		if val == nil || val == "" {
			col.EmptyCount++
		}
		if IsNumeric(val) {
			col.NumericCount++
		}
	}
	if s.StoreRecords {
		s.Records = append(s.Records, rec)
	}
}

// IsNumeric reports whether a value coerces to a number under lenient
// string-to-number rules.
func IsNumeric(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	_, err := cast.ToFloat64E(v)
	return err == nil
}
