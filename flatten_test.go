package tik_test

import (
	"bytes"
	"strings"
	"testing"

	tik "github.com/tabular-tools/tik"
)

func TestFlattenRecord(t *testing.T) {
	rec := tik.Record{
		"name": "Alice",
		"address": map[string]interface{}{
			"city": "Rome",
			"geo":  map[string]interface{}{"lat": 41.9},
		},
		"tags": []interface{}{"a", "b"},
	}
	flat := tik.FlattenRecord(rec)
	if flat["name"] != "Alice" {
		t.Fatalf("scalar should pass through: %v", flat)
	}
	if flat["address.city"] != "Rome" {
		t.Fatalf("nested field should flatten to a dotted path: %v", flat)
	}
	if flat["address.geo.lat"] != 41.9 {
		t.Fatalf("deep nesting should flatten: %v", flat)
	}
	if _, ok := flat["tags"]; !ok {
		t.Fatalf("arrays should stay as leaves: %v", flat)
	}
}

func TestWriteRecordsCSV(t *testing.T) {
	records := []tik.Record{
		{"name": "Alice", "city": "Seattle"},
		{"name": "Bob", "state": "OR"},
	}
	var buf bytes.Buffer
	if err := tik.WriteRecordsCSV(&buf, records); err != nil {
		t.Fatalf("writing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "city,name,state" {
		t.Fatalf("expected sorted union header, got %q", lines[0])
	}
	if lines[1] != "Seattle,Alice," || lines[2] != ",Bob,OR" {
		t.Fatalf("unexpected rows: %v", lines[1:])
	}
}

func TestEscapeCSVValue(t *testing.T) {
	tests := []struct {
		in     interface{}
		expect string
	}{
		{nil, ""},
		{"plain", "plain"},
		{"with,comma", `"with,comma"`},
		{`with "quotes"`, `"with ""quotes"""`},
		{"line\nbreak", "\"line\nbreak\""},
		{42, "42"},
	}
	for _, test := range tests {
		if got := tik.EscapeCSVValue(test.in); got != test.expect {
			t.Errorf("EscapeCSVValue(%v) = %q, want %q", test.in, got, test.expect)
		}
	}
}
