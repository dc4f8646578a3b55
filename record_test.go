package tik_test

import (
	"io"
	"testing"

	tik "github.com/tabular-tools/tik"
)

func TestRecordCopy(t *testing.T) {
	rec := tik.Record{
		"name":    "Alice",
		"address": map[string]interface{}{"city": "Rome"},
		"tags":    []interface{}{"a"},
	}
	cp := rec.Copy()
	cp["name"] = "Bob"
	cp["address"].(map[string]interface{})["city"] = "Oslo"
	cp["tags"].([]interface{})[0] = "b"

	if rec["name"] != "Alice" {
		t.Fatalf("copy shares top level: %v", rec)
	}
	if rec["address"].(map[string]interface{})["city"] != "Rome" {
		t.Fatalf("copy shares nested map: %v", rec)
	}
	if rec["tags"].([]interface{})[0] != "a" {
		t.Fatalf("copy shares slice: %v", rec)
	}
}

func TestSliceSource(t *testing.T) {
	src := tik.NewSliceSource([]tik.Record{
		{"id": "1"},
		{"id": "2"},
	})
	rec, err := src.Record()
	if err != nil || rec["id"] != "1" {
		t.Fatalf("unexpected first record: %v (%v)", rec, err)
	}
	if _, err := src.Record(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.Record(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if src.Columns() != nil {
		t.Fatalf("slice source has no column order: %v", src.Columns())
	}
}
