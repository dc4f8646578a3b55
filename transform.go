package tik

import (
	"io"
	"log"

	"github.com/google/uuid"
)

// MappingOutcome is the aggregate state of one ingestion run: the working
// comprehension, the optional prior comprehension used as merge fallback, the
// three configuration layers and their resolved merge, a row counter, and the
// records rejected for missing GUIDs or failed mapping. It is created at the
// start of a run, mutated per record, and discarded after output (its
// Comprehension is what gets persisted).
type MappingOutcome struct {
	Comprehension         Comprehension  `json:"Comprehension"`
	ExistingComprehension Comprehension  `json:"ExistingComprehension,omitempty"`
	ImplicitConfiguration *MappingConfig `json:"ImplicitConfiguration,omitempty"`
	ExplicitConfiguration *MappingConfig `json:"ExplicitConfiguration,omitempty"`
	UserConfiguration     *MappingConfig `json:"UserConfiguration,omitempty"`
	Configuration         *MappingConfig `json:"Configuration,omitempty"`
	DatasetLabel          string         `json:"DatasetLabel,omitempty"`
	ParsedRowCount        int            `json:"ParsedRowCount"`
	BadRecords            []Record       `json:"BadRecords"`
}

// NewMappingOutcome returns an empty outcome ready for an ingestion run.
func NewMappingOutcome() *MappingOutcome {
	return &MappingOutcome{
		Comprehension:     Comprehension{},
		UserConfiguration: &MappingConfig{},
		BadRecords:        []Record{},
	}
}

// Transformer maps raw records into comprehension records. The zero value is
// not usable; NewTransformer wires the default template engine and a no-op
// solver.
type Transformer struct {
	Templater Templater
	Solver    Solver
}

// NewTransformer returns a Transformer with the default tilde templater and a
// no-op solver.
func NewTransformer() *Transformer {
	return &Transformer{
		Templater: TildeTemplater{},
		Solver:    NopSolver{},
	}
}

// initializeOutcome resolves the outcome's configuration from its three
// layers, deriving the implicit layer from the first record seen. Safe to
// call repeatedly; only the first call does work.
func (t *Transformer) initializeOutcome(outcome *MappingOutcome, sample Record, fieldOrder []string) {
	if outcome.Configuration != nil {
		return
	}
	if outcome.Comprehension == nil {
		outcome.Comprehension = Comprehension{}
	}
	if outcome.ImplicitConfiguration == nil {
		label := outcome.DatasetLabel
		if label == "" {
			label = "Unknown-" + uuid.NewString()
		}
		outcome.ImplicitConfiguration = GeneratePrototype(label, sample, fieldOrder)
	}
	outcome.Configuration = ResolveConfiguration(
		outcome.ImplicitConfiguration,
		outcome.ExplicitConfiguration,
		outcome.UserConfiguration,
	)
	outcome.Comprehension.Entity(outcome.Configuration.Entity)
}

// AddRecord maps one raw record through the resolved configuration and places
// the result in the outcome's comprehension. A non-empty uniqueness string is
// injected into a copy of the raw record as the _GUIDUniqueness field before
// expansion, letting one raw record fan out into several entity records.
//
// Rejected records (no object produced, or a missing/empty GUID after
// expansion) are appended to BadRecords and logged; they never fail the run.
//
// Slot resolution by GUID, in precedence order: a GUID already written this
// run is shallow-merged in place (a logged duplicate); a GUID known to the
// prior comprehension merges the new fields onto a copy of the prior record;
// anything else inserts fresh. Afterward exactly one record exists at
// [Entity][GUID] and it is the union of every write seen so far.
func (t *Transformer) AddRecord(raw Record, outcome *MappingOutcome, prototype Record, uniqueness string) {
	incoming := raw.Copy()
	if uniqueness != "" {
		incoming["_GUIDUniqueness"] = uniqueness
	}

	cfg := outcome.Configuration
	rec := CreateRecordFromMapping(t.Templater, incoming, cfg, prototype)
	if rec == nil {
		log.Printf("no valid record generated from incoming transformation operation, skipping")
		outcome.BadRecords = append(outcome.BadRecords, incoming)
		return
	}
	guid, _ := rec[cfg.GUIDName].(string)
	if guid == "" {
		log.Printf("no valid GUID found for record, skipping")
		outcome.BadRecords = append(outcome.BadRecords, incoming)
		return
	}

	table := outcome.Comprehension.Entity(cfg.Entity)
	if existing, ok := table[guid]; ok {
		// Already ingested once by this parse.
		log.Printf("duplicate record for %s->[%s], merging with previous record", cfg.GUIDName, guid)
		table[guid] = merge(existing, rec)
		return
	}
	if prior, ok := outcome.ExistingComprehension[cfg.Entity][guid]; ok {
		table[guid] = merge(prior.Copy(), rec)
		return
	}
	table[guid] = rec
}

// TransformRecord runs the full per-record pipeline: lazy outcome
// initialization from the first non-empty record, the solver stage, and one AddRecord
// per uniqueness entry when fan-out is enabled (or a single AddRecord when it
// is not). Fan-out enabled with zero uniqueness entries rejects the record
// with an error log.
func (t *Transformer) TransformRecord(raw Record, fieldOrder []string, outcome *MappingOutcome) {
	outcome.ParsedRowCount++
	// empty records advance the row counter but never seed the implicit
	// configuration
	if len(raw) == 0 {
		return
	}
	t.initializeOutcome(outcome, raw, fieldOrder)

	sol := &Solution{
		IncomingRecord:           raw,
		Configuration:            outcome.Configuration,
		RowIndex:                 outcome.ParsedRowCount,
		NewRecordsGUIDUniqueness: []string{},
		NewRecordPrototype:       Record{},
	}
	for _, rule := range outcome.Configuration.Solvers {
		if err := t.Solver.Solve(rule, sol); err != nil {
			log.Printf("solver error at row %d: %v", sol.RowIndex, err)
		}
	}

	switch {
	case outcome.Configuration.MultipleGUIDUniqueness && len(sol.NewRecordsGUIDUniqueness) > 0:
		for _, uniq := range sol.NewRecordsGUIDUniqueness {
			t.AddRecord(raw, outcome, sol.NewRecordPrototype, uniq)
		}
	case !outcome.Configuration.MultipleGUIDUniqueness:
		t.AddRecord(raw, outcome, sol.NewRecordPrototype, "")
	default:
		log.Printf("no GUID uniqueness entries generated for %s record at row %d, skipping record",
			outcome.Configuration.Entity, outcome.ParsedRowCount)
		outcome.BadRecords = append(outcome.BadRecords, raw)
	}
}

// Run drains a source through the transformer into the outcome. Source errors
// other than end-of-input abort the run; per-record mapping failures do not.
func (t *Transformer) Run(src Source, outcome *MappingOutcome) error {
	for {
		rec, err := src.Record()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		t.TransformRecord(rec, src.Columns(), outcome)
	}
}
