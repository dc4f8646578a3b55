package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tabular-tools/tik/client"
)

func TestSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1.0/Person/Schema" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"properties":{"Name":{"type":"string","size":64},"IDPerson":{"type":"integer"}}}`))
	}))
	defer srv.Close()

	c, err := client.New(srv.URL + "/1.0/")
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	schema, err := c.Schema(context.Background(), "Person")
	if err != nil {
		t.Fatalf("fetching schema: %v", err)
	}
	if schema["Name"].Type != "string" || schema["Name"].Size != 64 {
		t.Fatalf("unexpected schema: %v", schema)
	}
}

func TestUpsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/1.0/Person" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var rec map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		rec["IDPerson"] = 42
		json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c, err := client.New(srv.URL + "/1.0/")
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	resp, err := c.Upsert(context.Background(), "Person", map[string]interface{}{"GUIDPerson": "P-1"})
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}
	if resp["IDPerson"].(float64) != 42 {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestUpsertBulk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/1.0/Persons" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var recs []map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		for i := range recs {
			recs[i]["IDPerson"] = i + 1
		}
		json.NewEncoder(w).Encode(recs)
	}))
	defer srv.Close()

	c, err := client.New(srv.URL + "/1.0/")
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	resp, err := c.UpsertBulk(context.Background(), "Person", []map[string]interface{}{
		{"GUIDPerson": "P-1"},
		{"GUIDPerson": "P-2"},
	})
	if err != nil {
		t.Fatalf("bulk upserting: %v", err)
	}
	if len(resp) != 2 || resp[1]["IDPerson"].(float64) != 2 {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" || r.URL.Path != "/1.0/Person/7" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"Count":1}`))
	}))
	defer srv.Close()

	c, err := client.New(srv.URL + "/1.0/")
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	if err := c.Delete(context.Background(), "Person", 7); err != nil {
		t.Fatalf("deleting: %v", err)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := client.New(srv.URL + "/1.0/")
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	_, err = c.Schema(context.Background(), "Person")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}
