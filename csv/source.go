// Package csv provides a tik.Source for delimited tabular data (CSV and
// TSV). The first line of input is the header; every following line becomes a
// tik.Record keyed by header name, in header order. Line parsing is
// deliberately small: a configurable delimiter and quote character, doubled
// quotes inside quoted fields, and nothing else.
package csv

import (
	"bufio"
	"io"
	"log"
	"strings"

	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
)

// Source reads delimited lines from a reader and yields records.
type Source struct {
	delimiter rune
	quote     rune

	scan   *bufio.Scanner
	header []string
	line   int
}

// Option is a functional option for the Source.
type Option func(s *Source)

// OptDelimiter sets the field delimiter (',' by default; use '\t' for TSV).
func OptDelimiter(d rune) Option {
	return func(s *Source) { s.delimiter = d }
}

// OptQuote sets the quote character ('"' by default; 0 disables quoting).
func OptQuote(q rune) Option {
	return func(s *Source) { s.quote = q }
}

// NewSource creates a Source reading from r. The header line is consumed on
// the first call to Record.
func NewSource(r io.Reader, opts ...Option) *Source {
	s := &Source{
		delimiter: ',',
		quote:     '"',
		scan:      bufio.NewScanner(r),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements tik.Source. It returns io.EOF once the input is
// exhausted. Empty lines are skipped. Rows shorter than the header leave the
// trailing columns empty; data beyond the header is logged and dropped.
func (s *Source) Record() (tik.Record, error) {
	if s.header == nil {
		if err := s.readHeader(); err != nil {
			return nil, err
		}
	}
	for s.scan.Scan() {
		s.line++
		txt := s.scan.Text()
		if strings.TrimSpace(txt) == "" {
			continue
		}
		row := s.parseLine(txt)
		if len(row) > len(s.header) {
			log.Printf("line %d has %d fields but the header has %d, dropping extras", s.line, len(row), len(s.header))
			row = row[:len(s.header)]
		}
		rec := make(tik.Record, len(s.header))
		for i, col := range s.header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		return rec, nil
	}
	if err := s.scan.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning input")
	}
	return nil, io.EOF
}

// Columns implements tik.Source, returning the header in column order. It is
// nil until the first Record call consumes the header.
func (s *Source) Columns() []string { return s.header }

func (s *Source) readHeader() error {
	for s.scan.Scan() {
		s.line++
		txt := s.scan.Text()
		if strings.TrimSpace(txt) == "" {
			continue
		}
		header := s.parseLine(txt)
		if err := validateHeader(header); err != nil {
			return errors.Wrap(err, "validating header")
		}
		s.header = header
		return nil
	}
	if err := s.scan.Err(); err != nil {
		return errors.Wrap(err, "scanning header")
	}
	return io.EOF
}

func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}

// parseLine splits one line into fields. Inside a quoted field the delimiter
// is literal and a doubled quote is a single literal quote.
func (s *Source) parseLine(line string) []string {
	if s.quote == 0 {
		return strings.Split(line, string(s.delimiter))
	}
	var fields []string
	var field strings.Builder
	inQuote := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote && r == s.quote:
			if i+1 < len(runes) && runes[i+1] == s.quote {
				field.WriteRune(s.quote)
				i++
			} else {
				inQuote = false
			}
		case inQuote:
			field.WriteRune(r)
		case r == s.quote && field.Len() == 0:
			inQuote = true
		case r == s.delimiter:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, field.String())
	return fields
}
