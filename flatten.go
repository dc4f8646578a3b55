package tik

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FlattenRecord flattens nested objects into dotted key paths. Array values
// are kept as leaves, not recursed into.
func FlattenRecord(rec Record) Record {
	out := Record{}
	flattenInto(out, map[string]interface{}(rec), "")
	return out
}

func flattenInto(out Record, obj map[string]interface{}, prefix string) {
	for key, val := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch tv := val.(type) {
		case map[string]interface{}:
			flattenInto(out, tv, path)
		case Record:
			flattenInto(out, map[string]interface{}(tv), path)
		default:
			out[path] = val
		}
	}
}

// WriteRecordsCSV flattens every record and emits CSV: the header is the
// lexicographically sorted union of all flattened keys across all records
// (collected in a first pass before any row is written), values containing a
// comma, quote, or newline are quoted with internal quotes doubled, and nil
// values render as the empty string.
func WriteRecordsCSV(w io.Writer, records []Record) error {
	keySet := map[string]struct{}{}
	flattened := make([]Record, 0, len(records))
	for _, rec := range records {
		flat := FlattenRecord(rec)
		flattened = append(flattened, flat)
		for key := range flat {
			keySet[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(keys, ",") + "\n"); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	row := make([]string, len(keys))
	for _, flat := range flattened {
		for i, key := range keys {
			row[i] = EscapeCSVValue(flat[key])
		}
		if _, err := bw.WriteString(strings.Join(row, ",") + "\n"); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	return errors.Wrap(bw.Flush(), "flushing csv")
}

// EscapeCSVValue renders a single CSV cell. nil becomes the empty string; any
// value containing a comma, double quote, or newline is wrapped in quotes
// with internal quotes doubled.
func EscapeCSVValue(v interface{}) string {
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
