package tik_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	tik "github.com/tabular-tools/tik"
)

func TestComprehensionEntity(t *testing.T) {
	c := tik.Comprehension{}
	table := c.Entity("Person")
	if table == nil {
		t.Fatal("expected lazily created table")
	}
	table["P-1"] = tik.Record{"name": "Alice"}
	if c["Person"]["P-1"]["name"] != "Alice" {
		t.Fatalf("table should be live in the comprehension: %v", c)
	}
	if len(c.Entity("Person")) != 1 {
		t.Fatal("repeated Entity calls should return the same table")
	}
}

func TestInferEntity(t *testing.T) {
	c := tik.Comprehension{"Person": {}}
	name, err := c.InferEntity("")
	if err != nil || name != "Person" {
		t.Fatalf("expected Person, got %q (%v)", name, err)
	}
	name, err = c.InferEntity("Address")
	if err != nil || name != "Address" {
		t.Fatalf("explicit entity should win: %q (%v)", name, err)
	}
	c["Address"] = map[string]tik.Record{}
	if _, err := c.InferEntity(""); err == nil {
		t.Fatal("expected error with two entities and no explicit name")
	}
	if _, err := (tik.Comprehension{}).InferEntity(""); err == nil {
		t.Fatal("expected error on empty comprehension")
	}
}

func TestIntersect(t *testing.T) {
	primary := tik.Comprehension{"Person": {
		"P-1": {"name": "Alice", "city": "Oslo"},
		"P-2": {"name": "Bob"},
	}}
	secondary := tik.Comprehension{"Person": {
		"P-1": {"city": "Rome"},
		"P-3": {"name": "Carol"},
	}}
	out, err := tik.Intersect(primary, secondary, "Person")
	if err != nil {
		t.Fatalf("intersecting: %v", err)
	}
	if out["Person"]["P-1"]["city"] != "Rome" {
		t.Fatalf("secondary should win overlaps: %v", out["Person"]["P-1"])
	}
	if out["Person"]["P-1"]["name"] != "Alice" {
		t.Fatalf("primary fields should survive: %v", out["Person"]["P-1"])
	}
	if out["Person"]["P-3"]["name"] != "Carol" {
		t.Fatalf("secondary-only records should insert: %v", out["Person"])
	}
	// inputs untouched
	if primary["Person"]["P-1"]["city"] != "Oslo" {
		t.Fatalf("primary mutated: %v", primary["Person"]["P-1"])
	}
}

func TestToArraySorted(t *testing.T) {
	c := tik.Comprehension{"Person": {
		"P-2": {"name": "Bob"},
		"P-1": {"name": "Alice"},
	}}
	records, err := c.ToArray("Person")
	if err != nil {
		t.Fatalf("unrolling: %v", err)
	}
	if len(records) != 2 || records[0]["name"] != "Alice" || records[1]["name"] != "Bob" {
		t.Fatalf("expected GUID-sorted records: %v", records)
	}
	if _, err := c.ToArray("Missing"); err == nil {
		t.Fatal("expected error for unknown entity")
	}
}

func TestComprehensionFileRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "tik-comp")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	c := tik.Comprehension{"Person": {"P-1": {"name": "Alice"}}}
	path := filepath.Join(dir, "comp.json")
	if err := c.WriteFile(path); err != nil {
		t.Fatalf("writing: %v", err)
	}
	loaded, err := tik.LoadComprehension(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if loaded["Person"]["P-1"]["name"] != "Alice" {
		t.Fatalf("round trip lost data: %v", loaded)
	}
}
