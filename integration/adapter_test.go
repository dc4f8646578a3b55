package integration_test

import (
	"context"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
	"github.com/tabular-tools/tik/client"
	"github.com/tabular-tools/tik/integration"
)

// fakeAPI is a scriptable in-memory API. Records upserted successfully get
// sequential IDs per entity.
type fakeAPI struct {
	mu sync.Mutex

	schema      client.Schema
	failUpserts bool
	errorBody   bool

	nextID    map[string]int64
	upserts   []map[string]interface{}
	deletes   []int64
	byGUID    map[string]map[string]interface{}
	callCount int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		schema: client.Schema{
			"Name": {Type: "string", Size: 8},
		},
		nextID: map[string]int64{},
		byGUID: map[string]map[string]interface{}{},
	}
}

func (f *fakeAPI) Schema(ctx context.Context, entity string) (client.Schema, error) {
	return f.schema, nil
}

func (f *fakeAPI) Upsert(ctx context.Context, entity string, rec map[string]interface{}) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	if f.failUpserts {
		return nil, errors.New("remote unavailable")
	}
	if f.errorBody {
		return map[string]interface{}{"Error": "nope"}, nil
	}
	f.nextID[entity]++
	resp := map[string]interface{}{}
	for k, v := range rec {
		resp[k] = v
	}
	resp["ID"+entity] = f.nextID[entity]
	f.upserts = append(f.upserts, resp)
	return resp, nil
}

func (f *fakeAPI) UpsertBulk(ctx context.Context, entity string, recs []map[string]interface{}) ([]map[string]interface{}, error) {
	resps := make([]map[string]interface{}, len(recs))
	for i, rec := range recs {
		resp, err := f.Upsert(ctx, entity, rec)
		if err != nil {
			return nil, err
		}
		resps[i] = resp
	}
	return resps, nil
}

func (f *fakeAPI) EntityByGUID(ctx context.Context, entity, guid string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.byGUID[guid]
	if !ok {
		return nil, errors.Errorf("no %s with GUID %s", entity, guid)
	}
	return body, nil
}

func (f *fakeAPI) Delete(ctx context.Context, entity string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func TestIntegrateRecords(t *testing.T) {
	api := newFakeAPI()
	guids := tik.NewGUIDMap()
	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, guids)

	adapter.AddSourceRecord("Person_1", tik.Record{
		"GUIDPerson": "Person_1",
		"Name":       "Alice",
		"CreateDate": "2020-01-01",
	})
	if err := adapter.IntegrateRecords(context.Background()); err != nil {
		t.Fatalf("integrating: %v", err)
	}
	if adapter.State() != integration.StatePushed {
		t.Fatalf("expected Pushed state, got %s", adapter.State())
	}
	if len(api.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(api.upserts))
	}
	pushed := api.upserts[0]
	if pushed["GUIDPerson"] != "INTG-DEF-E-Person-Person_1" {
		t.Fatalf("unexpected marshal GUID: %v", pushed["GUIDPerson"])
	}
	if _, ok := pushed["CreateDate"]; ok {
		t.Fatal("reserved field CreateDate not stripped")
	}
	id, ok := guids.IDFromGUID("Person", "INTG-DEF-E-Person-Person_1")
	if !ok || id != 1 {
		t.Fatalf("expected ID 1 recorded, got %d (ok=%v)", id, ok)
	}
	if id, ok := guids.IDFromExternalGUID("Person", "Person_1"); !ok || id != 1 {
		t.Fatalf("external GUID chain broken: %d (ok=%v)", id, ok)
	}
}

func TestMarshalResolvesReferences(t *testing.T) {
	api := newFakeAPI()
	guids := tik.NewGUIDMap()

	// the Address this Person references was pushed earlier
	guids.MapExternalGUID("Address", "Addr_1", "INTG-DEF-E-Address-Addr_1")
	guids.MapGUIDToID("Address", "INTG-DEF-E-Address-Addr_1", 7)

	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, guids)
	adapter.AddSourceRecord("Person_1", tik.Record{
		"Name":        "Alice",
		"GUIDAddress": "Addr_1",
		"GUIDCompany": "missing",
	})
	if err := adapter.FetchSchema(context.Background()); err != nil {
		t.Fatalf("fetching schema: %v", err)
	}
	if err := adapter.MarshalSourceRecords(); err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	rec := adapter.MarshaledRecords["INTG-DEF-E-Person-Person_1"]
	if rec == nil {
		t.Fatalf("record not marshaled: %v", adapter.MarshaledRecords)
	}
	if rec["IDAddress"] != int64(7) {
		t.Fatalf("reference not resolved: %v", rec["IDAddress"])
	}
	if _, ok := rec["IDCompany"]; ok {
		t.Fatal("unresolved reference should be omitted")
	}
	if _, ok := rec["GUIDAddress"]; ok {
		t.Fatal("GUID reference field should not survive marshal")
	}
	if len(adapter.SourceRecords) != 0 {
		t.Fatalf("staging buffer not emptied: %v", adapter.SourceRecords)
	}
}

func TestAddSourceRecordRejectsInvalid(t *testing.T) {
	api := newFakeAPI()
	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, tik.NewGUIDMap())

	if adapter.AddSourceRecord("", nil) {
		t.Fatal("nil record with empty GUID should be rejected")
	}
	if adapter.AddSourceRecord("P-1", nil) {
		t.Fatal("nil record should be rejected")
	}
	if adapter.AddSourceRecord("", tik.Record{"Name": "Alice"}) {
		t.Fatal("record with empty external GUID should be rejected")
	}
	if len(adapter.SourceRecords) != 0 {
		t.Fatalf("rejected records should not be staged: %v", adapter.SourceRecords)
	}
	if !adapter.AddSourceRecord("P-1", tik.Record{"Name": "Alice"}) {
		t.Fatal("valid record should be staged")
	}

	if err := adapter.FetchSchema(context.Background()); err != nil {
		t.Fatalf("fetching schema: %v", err)
	}
	if err := adapter.MarshalSourceRecords(); err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	if _, ok := adapter.MarshaledRecords["INTG-DEF-E-Person-"]; ok {
		t.Fatalf("garbage GUID made it through: %v", adapter.MarshaledRecords)
	}
	if len(adapter.MarshaledRecords) != 1 {
		t.Fatalf("expected exactly the valid record: %v", adapter.MarshaledRecords)
	}
}

func TestMarshalDropsUndeclaredFields(t *testing.T) {
	api := newFakeAPI()
	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, tik.NewGUIDMap())
	adapter.AddSourceRecord("P-1", tik.Record{"Name": "Alice", "NotInSchema": "oops"})
	if err := adapter.FetchSchema(context.Background()); err != nil {
		t.Fatalf("fetching schema: %v", err)
	}
	if err := adapter.MarshalSourceRecords(); err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	rec := adapter.MarshaledRecords["INTG-DEF-E-Person-P-1"]
	if rec["Name"] != "Alice" {
		t.Fatalf("declared field should survive: %v", rec)
	}
	if _, ok := rec["NotInSchema"]; ok {
		t.Fatalf("field the schema does not declare should be dropped: %v", rec)
	}
}

func TestMarshalTruncatesToSchema(t *testing.T) {
	api := newFakeAPI()
	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, tik.NewGUIDMap())
	adapter.AddSourceRecord("P-1", tik.Record{"Name": "Bartholomew Cubbins"})
	if err := adapter.FetchSchema(context.Background()); err != nil {
		t.Fatalf("fetching schema: %v", err)
	}
	if err := adapter.MarshalSourceRecords(); err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	rec := adapter.MarshaledRecords["INTG-DEF-E-Person-P-1"]
	if rec["Name"] != "Bartholo" {
		t.Fatalf("expected truncation to 8 chars, got %q", rec["Name"])
	}
}

func TestMarshalTruncatesOnRuneBoundary(t *testing.T) {
	api := newFakeAPI()
	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, tik.NewGUIDMap())
	adapter.AddSourceRecord("P-1", tik.Record{"Name": "éééééééééé"})
	if err := adapter.FetchSchema(context.Background()); err != nil {
		t.Fatalf("fetching schema: %v", err)
	}
	if err := adapter.MarshalSourceRecords(); err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	rec := adapter.MarshaledRecords["INTG-DEF-E-Person-P-1"]
	name, ok := rec["Name"].(string)
	if !ok {
		t.Fatalf("expected string value, got %T", rec["Name"])
	}
	if name != "éééééééé" {
		t.Fatalf("expected 8 whole runes, got %q", name)
	}
	if !utf8.ValidString(name) {
		t.Fatalf("truncation split a rune: %q", name)
	}
}

func TestUpsertRetryCeiling(t *testing.T) {
	api := newFakeAPI()
	api.failUpserts = true
	guids := tik.NewGUIDMap()
	cfg := integration.NewConfig("Person")
	cfg.RetryThreshold = 3
	adapter := integration.NewAdapter(cfg, api, guids)
	adapter.AddSourceRecord("P-1", tik.Record{"Name": "Alice"})

	// must resolve, not hang or error, despite every upsert failing
	if err := adapter.IntegrateRecords(context.Background()); err != nil {
		t.Fatalf("integrating: %v", err)
	}
	if api.callCount > cfg.RetryThreshold+1 {
		t.Fatalf("expected at most %d attempts, got %d", cfg.RetryThreshold+1, api.callCount)
	}
	if _, ok := guids.IDFromGUID("Person", "INTG-DEF-E-Person-P-1"); ok {
		t.Fatal("no mapping should be recorded for a failed upsert")
	}
}

func TestUpsertRetriesOnErrorBody(t *testing.T) {
	api := newFakeAPI()
	api.errorBody = true
	cfg := integration.NewConfig("Person")
	cfg.RetryThreshold = 2
	guids := tik.NewGUIDMap()
	adapter := integration.NewAdapter(cfg, api, guids)
	adapter.AddSourceRecord("P-1", tik.Record{"Name": "Alice"})

	if err := adapter.IntegrateRecords(context.Background()); err != nil {
		t.Fatalf("integrating: %v", err)
	}
	if api.callCount != cfg.RetryThreshold+1 {
		t.Fatalf("expected %d attempts, got %d", cfg.RetryThreshold+1, api.callCount)
	}
	if _, ok := guids.IDFromGUID("Person", "INTG-DEF-E-Person-P-1"); ok {
		t.Fatal("no mapping should be recorded for an error body")
	}
}

func TestBulkPush(t *testing.T) {
	api := newFakeAPI()
	guids := tik.NewGUIDMap()
	cfg := integration.NewConfig("Person")
	cfg.BulkThreshold = 2
	cfg.BulkBatchSize = 2
	adapter := integration.NewAdapter(cfg, api, guids)
	for _, g := range []string{"P-1", "P-2", "P-3"} {
		adapter.AddSourceRecord(g, tik.Record{"Name": g})
	}
	if err := adapter.IntegrateRecords(context.Background()); err != nil {
		t.Fatalf("integrating: %v", err)
	}
	if len(api.upserts) != 3 {
		t.Fatalf("expected 3 upserted records, got %d", len(api.upserts))
	}
	for _, g := range []string{"P-1", "P-2", "P-3"} {
		if _, ok := guids.IDFromExternalGUID("Person", g); !ok {
			t.Fatalf("no ID recorded for %s", g)
		}
	}
}

func TestDeleteRouting(t *testing.T) {
	api := newFakeAPI()
	api.byGUID["INTG-DEF-E-Person-P-2"] = map[string]interface{}{"IDPerson": 9}
	guids := tik.NewGUIDMap()
	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, guids)
	adapter.AddSourceRecord("P-1", tik.Record{"Name": "keep"})
	adapter.AddSourceRecord("P-2", tik.Record{"Name": "drop", "Deleted": true})

	if err := adapter.IntegrateRecords(context.Background()); err != nil {
		t.Fatalf("integrating: %v", err)
	}
	if len(api.upserts) != 1 {
		t.Fatalf("deleted record should not be upserted: %d upserts", len(api.upserts))
	}
	if len(api.deletes) != 1 || api.deletes[0] != 9 {
		t.Fatalf("expected delete of ID 9, got %v", api.deletes)
	}
	if len(adapter.DeletedRecords) != 0 {
		t.Fatalf("delete buffer should drain on success: %v", adapter.DeletedRecords)
	}
}

func TestStateOrderEnforced(t *testing.T) {
	api := newFakeAPI()
	adapter := integration.NewAdapter(integration.NewConfig("Person"), api, tik.NewGUIDMap())
	if err := adapter.MarshalSourceRecords(); err == nil {
		t.Fatal("expected error marshaling before schema fetch")
	}
	if err := adapter.PushRecords(context.Background()); err == nil {
		t.Fatal("expected error pushing before marshal")
	}
}

func TestSetRegistration(t *testing.T) {
	api := newFakeAPI()
	set := integration.NewSet(api, tik.NewGUIDMap(), "")
	if _, err := set.Adapter("Person"); err == nil {
		t.Fatal("expected error for unregistered adapter")
	}
	a, err := set.Register("ProjectUser")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if a.Entity() != "ProjectUser" {
		t.Fatalf("unexpected entity: %s", a.Entity())
	}
	if _, err := set.Register("ProjectUser"); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
	got, err := set.Adapter("ProjectUser")
	if err != nil || got != a {
		t.Fatalf("lookup returned %v, %v", got, err)
	}
}

func TestCapitalPrefix(t *testing.T) {
	if p := integration.CapitalPrefix("ProjectUser"); p != "PU" {
		t.Fatalf("expected PU, got %s", p)
	}
	if p := integration.CapitalPrefix("widget"); p != "widget" {
		t.Fatalf("expected fallback to full name, got %s", p)
	}
}
