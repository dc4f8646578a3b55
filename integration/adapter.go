// Package integration pushes comprehension records to a downstream REST API.
// Each entity gets an Adapter which stages raw records, marshals them against
// the remote schema (resolving cross-entity GUID references to numeric IDs),
// and upserts them with bounded retry, recording server-assigned IDs in the
// GUID map as they come back.
package integration

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	tik "github.com/tabular-tools/tik"
	"github.com/tabular-tools/tik/client"
)

// API is the remote surface the adapter needs. client.Client implements it.
type API interface {
	Schema(ctx context.Context, entity string) (client.Schema, error)
	Upsert(ctx context.Context, entity string, rec map[string]interface{}) (map[string]interface{}, error)
	UpsertBulk(ctx context.Context, entity string, recs []map[string]interface{}) ([]map[string]interface{}, error)
	EntityByGUID(ctx context.Context, entity, guid string) (map[string]interface{}, error)
	Delete(ctx context.Context, entity string, id int64) error
}

// State tracks the adapter's progress through its pipeline. Stages run in a
// fixed order and each must complete before the next starts.
type State int

const (
	StateIdle State = iota
	StateSchemaFetched
	StateMarshaled
	StatePushed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSchemaFetched:
		return "SchemaFetched"
	case StateMarshaled:
		return "Marshaled"
	case StatePushed:
		return "Pushed"
	}
	return "Unknown"
}

// retryCeiling is the absolute cap on upsert retries regardless of the
// configured threshold.
const retryCeiling = 50

// Config controls one entity adapter.
type Config struct {
	Entity string

	// GUIDPrefix and EntityGUIDPrefix form the internal marshal GUID:
	// {GUIDPrefix}-{EntityGUIDPrefix}-{externalGUID}.
	GUIDPrefix       string
	EntityGUIDPrefix string

	PerformUpserts bool
	PerformDeletes bool

	RetryThreshold int
	BulkThreshold  int
	BulkBatchSize  int
}

// NewConfig returns the default configuration for entity.
func NewConfig(entity string) Config {
	return Config{
		Entity:           entity,
		GUIDPrefix:       "INTG-DEF",
		EntityGUIDPrefix: "E-" + entity,
		PerformUpserts:   true,
		PerformDeletes:   true,
		RetryThreshold:   5,
		BulkThreshold:    1000,
		BulkBatchSize:    100,
	}
}

// CapitalPrefix returns the capital letters of an entity name, the
// conventional short prefix for marshal GUIDs ("ProjectUser" -> "PU"). Falls
// back to the full name when there are none.
func CapitalPrefix(entity string) string {
	var b strings.Builder
	for _, r := range entity {
		if unicode.IsUpper(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return entity
	}
	return b.String()
}

// Adapter stages, marshals, and pushes records for one entity. It is not
// safe for concurrent use by multiple goroutines; the concurrency during a
// push happens inside PushRecords.
type Adapter struct {
	cfg   Config
	api   API
	guids tik.GUIDMapper

	schema client.Schema
	state  State

	// SourceRecords is keyed by external GUID; MarshaledRecords and
	// DeletedRecords by internal marshal GUID. A record moves out of
	// SourceRecords into exactly one of the other two during a marshal
	// pass.
	SourceRecords    map[string]tik.Record
	MarshaledRecords map[string]tik.Record
	DeletedRecords   map[string]tik.Record

	// MarshalExtra, when set, runs after each record's standard marshal
	// with the raw source record and the marshaled output.
	MarshalExtra func(source, marshaled tik.Record)
}

// reservedFields never make it into a marshaled record; the storage layer
// owns them.
var reservedFields = map[string]bool{
	"CreateDate": true,
	"UpdateDate": true,
	"Deleted":    true,
	"DeleteDate": true,
}

// NewAdapter creates an adapter for cfg.Entity talking through api, using
// guids for GUID/ID bookkeeping.
func NewAdapter(cfg Config, api API, guids tik.GUIDMapper) *Adapter {
	return &Adapter{
		cfg:              cfg,
		api:              api,
		guids:            guids,
		state:            StateIdle,
		SourceRecords:    map[string]tik.Record{},
		MarshaledRecords: map[string]tik.Record{},
		DeletedRecords:   map[string]tik.Record{},
	}
}

// Entity returns the entity this adapter pushes.
func (a *Adapter) Entity() string { return a.cfg.Entity }

// State returns the adapter's current pipeline state.
func (a *Adapter) State() State { return a.state }

// Schema returns the remote schema, nil before FetchSchema.
func (a *Adapter) Schema() client.Schema { return a.schema }

// AddSourceRecord stages a raw record under its external GUID. Nil records
// and records without an external GUID are logged and rejected rather than
// staged. Staging an already-staged GUID overwrites it.
func (a *Adapter) AddSourceRecord(externalGUID string, rec tik.Record) bool {
	if rec == nil {
		log.Printf("ignoring nil %s source record for GUID %q", a.cfg.Entity, externalGUID)
		return false
	}
	if externalGUID == "" {
		log.Printf("ignoring %s source record with no external GUID", a.cfg.Entity)
		return false
	}
	a.SourceRecords[externalGUID] = rec
	return true
}

// FetchSchema pulls the remote entity schema. First pipeline stage.
func (a *Adapter) FetchSchema(ctx context.Context) error {
	if a.state != StateIdle {
		return errors.Errorf("fetch schema called in state %s, want Idle", a.state)
	}
	schema, err := a.api.Schema(ctx, a.cfg.Entity)
	if err != nil {
		return errors.Wrap(err, "fetching schema")
	}
	a.schema = schema
	a.state = StateSchemaFetched
	return nil
}

// MarshalRecord normalizes one staged record: generates the internal GUID,
// resolves GUID references to other entities into ID fields, drops fields
// the remote schema does not declare, truncates string fields to the
// schema's size limits, and strips reserved fields. If
// the internal GUID is already in the upsert buffer the new fields merge
// onto the buffered record.
func (a *Adapter) MarshalRecord(externalGUID string, src tik.Record) (tik.Record, error) {
	internalGUID := a.cfg.GUIDPrefix + "-" + a.cfg.EntityGUIDPrefix + "-" + externalGUID
	if err := a.guids.MapExternalGUID(a.cfg.Entity, externalGUID, internalGUID); err != nil {
		return nil, errors.Wrap(err, "registering external GUID")
	}

	out := tik.Record{"GUID" + a.cfg.Entity: internalGUID}
	for field, value := range src {
		switch {
		case reservedFields[field]:
		case field == "GUID"+a.cfg.Entity:
			// own GUID already set from the marshal prefix
		case strings.HasPrefix(field, "_GUID"):
			refEntity := strings.TrimPrefix(field, "_GUID")
			guid := cast.ToString(value)
			if id, ok := a.guids.IDFromGUID(refEntity, guid); ok {
				out["ID"+refEntity] = id
			} else {
				log.Printf("no ID for %s internal GUID %q referenced by %s %s, omitting", refEntity, guid, a.cfg.Entity, externalGUID)
			}
		case strings.HasPrefix(field, "GUID"):
			refEntity := strings.TrimPrefix(field, "GUID")
			guid := cast.ToString(value)
			if id, ok := a.guids.IDFromExternalGUID(refEntity, guid); ok {
				out["ID"+refEntity] = id
			} else {
				log.Printf("no ID for %s external GUID %q referenced by %s %s, omitting", refEntity, guid, a.cfg.Entity, externalGUID)
			}
		default:
			// when a schema is known, only fields it declares go out
			if len(a.schema) > 0 {
				if _, ok := a.schema[field]; !ok {
					continue
				}
			}
			out[field] = a.truncateToSchema(field, value)
		}
	}
	if a.MarshalExtra != nil {
		a.MarshalExtra(src, out)
	}
	if existing, ok := a.MarshaledRecords[internalGUID]; ok {
		for k, v := range out {
			existing[k] = v
		}
		return existing, nil
	}
	return out, nil
}

func (a *Adapter) truncateToSchema(field string, value interface{}) interface{} {
	prop, ok := a.schema[field]
	if !ok || prop.Type != "string" || prop.Size <= 0 {
		return value
	}
	s := cast.ToString(value)
	if runes := []rune(s); len(runes) > prop.Size {
		return string(runes[:prop.Size])
	}
	return s
}

// MarshalSourceRecords marshals every staged record, routing ones flagged
// Deleted into the delete buffer and the rest into the upsert buffer, and
// empties the staging buffer. Safe to re-invoke; already marshaled records
// are not re-staged.
func (a *Adapter) MarshalSourceRecords() error {
	if a.state != StateSchemaFetched {
		return errors.Errorf("marshal called in state %s, want SchemaFetched", a.state)
	}
	for _, externalGUID := range sortedKeys(a.SourceRecords) {
		src := a.SourceRecords[externalGUID]
		rec, err := a.MarshalRecord(externalGUID, src)
		if err != nil {
			return errors.Wrapf(err, "marshaling %s", externalGUID)
		}
		internalGUID := cast.ToString(rec["GUID"+a.cfg.Entity])
		if deleted, _ := src["Deleted"].(bool); deleted {
			a.DeletedRecords[internalGUID] = rec
		} else {
			a.MarshaledRecords[internalGUID] = rec
		}
		delete(a.SourceRecords, externalGUID)
	}
	a.state = StateMarshaled
	return nil
}

// validResponse reports whether an upsert response body carries the expected
// identity fields for guid: a positive numeric ID{Entity}, a matching
// GUID{Entity}, and no server-reported Error/code field. On success it
// returns the ID.
func (a *Adapter) validResponse(body map[string]interface{}, guid string) (int64, bool) {
	if body == nil {
		return 0, false
	}
	if _, ok := body["Error"]; ok {
		return 0, false
	}
	if _, ok := body["code"]; ok {
		return 0, false
	}
	id, err := cast.ToInt64E(body["ID"+a.cfg.Entity])
	if err != nil || id <= 0 {
		return 0, false
	}
	if cast.ToString(body["GUID"+a.cfg.Entity]) != guid {
		return 0, false
	}
	return id, true
}

// retriesExhausted is the hard stop for the upsert retry loop: past both the
// configured threshold and the absolute ceiling means give up, log, and
// resolve without a mapping.
func (a *Adapter) retriesExhausted(count int) bool {
	return count > a.cfg.RetryThreshold || count > retryCeiling
}

// upsertSingleRecord pushes one record, retrying until the response carries
// valid identity fields or retries are exhausted. It never returns an error;
// a permanently failing record is logged and skipped.
func (a *Adapter) upsertSingleRecord(ctx context.Context, guid string, rec tik.Record) {
	for count := 0; ; count++ {
		if a.retriesExhausted(count) {
			log.Printf("giving up upserting %s %s after %d attempts", a.cfg.Entity, guid, count)
			return
		}
		body, err := a.api.Upsert(ctx, a.cfg.Entity, rec)
		if err != nil {
			log.Printf("upserting %s %s (attempt %d): %v", a.cfg.Entity, guid, count+1, err)
			continue
		}
		id, ok := a.validResponse(body, guid)
		if !ok {
			log.Printf("upsert response for %s %s missing identity fields (attempt %d): %v", a.cfg.Entity, guid, count+1, body)
			continue
		}
		if err := a.guids.MapGUIDToID(a.cfg.Entity, guid, id); err != nil {
			log.Printf("recording ID %d for %s %s: %v", id, a.cfg.Entity, guid, err)
		}
		return
	}
}

// upsertBulkRecords pushes a batch in one call. Responses are matched to
// inputs by GUID with a positional fallback, and every element is validated
// as strictly as the single-record path. The batch retries as a whole until
// every record validates or retries are exhausted, at which point whatever
// validated is recorded and the rest are logged.
func (a *Adapter) upsertBulkRecords(ctx context.Context, guids []string, recs []tik.Record) {
	batch := make([]map[string]interface{}, len(recs))
	for i, r := range recs {
		batch[i] = r
	}
	mapped := make([]bool, len(guids))
	for count := 0; ; count++ {
		if a.retriesExhausted(count) {
			for i, ok := range mapped {
				if !ok {
					log.Printf("giving up upserting %s %s after %d batch attempts", a.cfg.Entity, guids[i], count)
				}
			}
			return
		}
		bodies, err := a.api.UpsertBulk(ctx, a.cfg.Entity, batch)
		if err != nil {
			log.Printf("bulk upserting %d %s records (attempt %d): %v", len(batch), a.cfg.Entity, count+1, err)
			continue
		}
		byGUID := make(map[string]map[string]interface{}, len(bodies))
		for _, body := range bodies {
			byGUID[cast.ToString(body["GUID"+a.cfg.Entity])] = body
		}
		allValid := true
		for i, guid := range guids {
			if mapped[i] {
				continue
			}
			body, ok := byGUID[guid]
			if !ok && i < len(bodies) {
				body = bodies[i]
			}
			id, valid := a.validResponse(body, guid)
			if !valid {
				allValid = false
				continue
			}
			if err := a.guids.MapGUIDToID(a.cfg.Entity, guid, id); err != nil {
				log.Printf("recording ID %d for %s %s: %v", id, a.cfg.Entity, guid, err)
			}
			mapped[i] = true
		}
		if allValid {
			return
		}
	}
}

// PushRecords sends every marshaled record to the remote endpoint. Above the
// bulk threshold records go out in fixed-size concurrent batches, otherwise
// one concurrent upsert per record. The stage completes only once every
// record has settled, success or exhausted retries.
func (a *Adapter) PushRecords(ctx context.Context) error {
	if a.state != StateMarshaled {
		return errors.Errorf("push called in state %s, want Marshaled", a.state)
	}
	guids := sortedKeys(a.MarshaledRecords)
	var wg sync.WaitGroup
	if len(guids) > a.cfg.BulkThreshold {
		size := a.cfg.BulkBatchSize
		if size <= 0 {
			size = 100
		}
		for start := 0; start < len(guids); start += size {
			end := start + size
			if end > len(guids) {
				end = len(guids)
			}
			batchGUIDs := guids[start:end]
			batchRecs := make([]tik.Record, len(batchGUIDs))
			for i, g := range batchGUIDs {
				batchRecs[i] = a.MarshaledRecords[g]
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.upsertBulkRecords(ctx, batchGUIDs, batchRecs)
			}()
		}
	} else {
		for _, guid := range guids {
			guid := guid
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.upsertSingleRecord(ctx, guid, a.MarshaledRecords[guid])
			}()
		}
	}
	wg.Wait()
	a.state = StatePushed
	return nil
}

// DeleteRecords resolves each queued deletion to a numeric ID via the remote
// read-by-GUID endpoint and deletes it. A record that cannot be resolved is
// logged and skipped, not retried.
func (a *Adapter) DeleteRecords(ctx context.Context) error {
	for _, guid := range sortedKeys(a.DeletedRecords) {
		body, err := a.api.EntityByGUID(ctx, a.cfg.Entity, guid)
		if err != nil {
			log.Printf("resolving %s %s for deletion: %v", a.cfg.Entity, guid, err)
			continue
		}
		id, err := cast.ToInt64E(body["ID"+a.cfg.Entity])
		if err != nil || id <= 0 {
			log.Printf("no ID for %s %s, skipping deletion", a.cfg.Entity, guid)
			continue
		}
		if err := a.api.Delete(ctx, a.cfg.Entity, id); err != nil {
			log.Printf("deleting %s %d: %v", a.cfg.Entity, id, err)
			continue
		}
		delete(a.DeletedRecords, guid)
	}
	return nil
}

// IntegrateRecords runs the full pipeline: fetch schema, marshal, push,
// delete. Stages run strictly in order and the first stage error stops the
// run.
func (a *Adapter) IntegrateRecords(ctx context.Context) error {
	if err := a.FetchSchema(ctx); err != nil {
		return err
	}
	if err := a.MarshalSourceRecords(); err != nil {
		return err
	}
	if a.cfg.PerformUpserts {
		if err := a.PushRecords(ctx); err != nil {
			return err
		}
	} else {
		a.state = StatePushed
	}
	if a.cfg.PerformDeletes {
		if err := a.DeleteRecords(ctx); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]tik.Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
