package integration

import (
	"context"
	"log"

	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
	"github.com/tabular-tools/tik/boltdb"
	"github.com/tabular-tools/tik/client"
)

// Main contains the configuration for pushing a comprehension file to a
// downstream REST API.
type Main struct {
	Path           string `help:"Comprehension JSON file to push."`
	URL            string `help:"Base URL of the downstream API, including any prefix (e.g. http://localhost:8086/1.0/)."`
	Entity         string `help:"Entity to push. Blank pushes every entity in the comprehension."`
	GUIDPrefix     string `help:"Prefix for internally generated marshal GUIDs."`
	GUIDMapFile    string `help:"Optional bolt file persisting GUID/ID mappings across runs. Blank keeps them in memory."`
	RetryThreshold int    `help:"Upsert retries per record before giving up."`
	BulkThreshold  int    `help:"Record count above which upserts switch to batched bulk calls."`
	BulkBatchSize  int    `help:"Records per bulk batch."`
	SkipUpserts    bool   `help:"Marshal but do not upsert."`
	SkipDeletes    bool   `help:"Leave records flagged Deleted alone."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	cfg := NewConfig("")
	return &Main{
		URL:            "http://localhost:8086/1.0/",
		GUIDPrefix:     cfg.GUIDPrefix,
		RetryThreshold: cfg.RetryThreshold,
		BulkThreshold:  cfg.BulkThreshold,
		BulkBatchSize:  cfg.BulkBatchSize,
	}
}

// Run pushes the comprehension.
func (m *Main) Run() error {
	comp, err := tik.LoadComprehension(m.Path)
	if err != nil {
		return errors.Wrap(err, "loading comprehension")
	}
	api, err := client.New(m.URL)
	if err != nil {
		return errors.Wrap(err, "creating client")
	}

	var guids tik.GUIDMapper
	if m.GUIDMapFile != "" {
		bm, err := boltdb.NewGUIDMap(m.GUIDMapFile)
		if err != nil {
			return errors.Wrap(err, "opening GUID map file")
		}
		defer bm.Close()
		guids = bm
	} else {
		guids = tik.NewGUIDMap()
	}

	set := NewSet(api, guids, m.GUIDPrefix)
	entities := comp.Entities()
	if m.Entity != "" {
		entities = []string{m.Entity}
	}

	ctx := context.Background()
	for _, entity := range entities {
		cfg := NewConfig(entity)
		cfg.EntityGUIDPrefix = "E-" + CapitalPrefix(entity)
		cfg.RetryThreshold = m.RetryThreshold
		cfg.BulkThreshold = m.BulkThreshold
		cfg.BulkBatchSize = m.BulkBatchSize
		cfg.PerformUpserts = !m.SkipUpserts
		cfg.PerformDeletes = !m.SkipDeletes
		adapter, err := set.RegisterConfig(cfg)
		if err != nil {
			return errors.Wrapf(err, "registering adapter for %s", entity)
		}
		for guid, rec := range comp[entity] {
			adapter.AddSourceRecord(guid, rec)
		}
		log.Printf("pushing %d %s records", len(comp[entity]), entity)
		if err := adapter.IntegrateRecords(ctx); err != nil {
			return errors.Wrapf(err, "integrating %s", entity)
		}
	}
	return nil
}
