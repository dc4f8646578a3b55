package tik_test

import (
	"testing"

	tik "github.com/tabular-tools/tik"
)

func TestTemplateExpand(t *testing.T) {
	tpl := tik.TildeTemplater{}
	rec := tik.Record{"id": "7", "name": "Alice"}

	tests := []struct {
		template string
		expect   string
	}{
		{"Person_{~D:Record.id~}", "Person_7"},
		{"{~Data:Record.name~}", "Alice"},
		{"{~D:Record.id~}-{~D:Record.name~}", "7-Alice"},
		{"no tokens here", "no tokens here"},
		{"", ""},
		{"{~D:Record.missing~}", ""},
	}
	for _, test := range tests {
		if got := tpl.Expand(test.template, rec); got != test.expect {
			t.Errorf("Expand(%q) = %q, want %q", test.template, got, test.expect)
		}
	}
}

func TestTemplateNestedAddress(t *testing.T) {
	tpl := tik.TildeTemplater{}
	rec := tik.Record{
		"address": map[string]interface{}{"city": "Rome"},
	}
	if got := tpl.Expand("{~D:Record.address.city~}", rec); got != "Rome" {
		t.Fatalf("expected Rome, got %q", got)
	}
}

func TestTemplateNonStringValues(t *testing.T) {
	tpl := tik.TildeTemplater{}
	rec := tik.Record{"count": 3, "ok": true, "none": nil}
	if got := tpl.Expand("{~D:Record.count~}", rec); got != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
	if got := tpl.Expand("{~D:Record.ok~}", rec); got != "true" {
		t.Fatalf("expected true, got %q", got)
	}
	if got := tpl.Expand("{~D:Record.none~}", rec); got != "" {
		t.Fatalf("expected empty for nil, got %q", got)
	}
}
