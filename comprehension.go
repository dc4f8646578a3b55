package tik

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Comprehension is the kit's canonical intermediate representation: an
// entity-keyed table of GUID-keyed records. GUIDs are unique within an entity
// table; a record's identity is its GUID and nothing else. Comprehensions are
// created empty or loaded from a prior persisted file, extended and merged by
// ingestion passes, and persisted as JSON. Records are never deleted.
type Comprehension map[string]map[string]Record

// LoadComprehension reads a persisted comprehension file.
func LoadComprehension(path string) (Comprehension, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading comprehension %s", path)
	}
	c := Comprehension{}
	if err := json.Unmarshal(buf, &c); err != nil {
		return nil, errors.Wrapf(err, "parsing comprehension %s", path)
	}
	return c, nil
}

// WriteFile persists the comprehension as indented JSON.
func (c Comprehension) WriteFile(path string) error {
	buf, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return errors.Wrap(err, "encoding comprehension")
	}
	return errors.Wrapf(os.WriteFile(path, buf, 0644), "writing comprehension %s", path)
}

// Copy returns a deep copy of the comprehension.
func (c Comprehension) Copy() Comprehension {
	out := make(Comprehension, len(c))
	for entity, table := range c {
		outTable := make(map[string]Record, len(table))
		for guid, rec := range table {
			outTable[guid] = rec.Copy()
		}
		out[entity] = outTable
	}
	return out
}

// Entity returns the table for the named entity, creating it if needed.
func (c Comprehension) Entity(name string) map[string]Record {
	table, ok := c[name]
	if !ok {
		table = map[string]Record{}
		c[name] = table
	}
	return table
}

// InferEntity resolves which entity an operation should act on. An explicit
// name always wins. With no explicit name, a comprehension holding exactly
// one entity silently selects it; anything else is an error rather than a
// guess.
func (c Comprehension) InferEntity(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if len(c) == 1 {
		for name := range c {
			return name, nil
		}
	}
	if len(c) == 0 {
		return "", errors.New("no entities in comprehension and no entity specified")
	}
	return "", errors.Errorf("comprehension holds %d entities and no entity was specified", len(c))
}

// Entities returns the entity names in sorted order.
func (c Comprehension) Entities() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GUIDs returns the GUIDs of one entity table in sorted order. Go maps carry
// no insertion order, so sorted GUID order stands in for the enumeration
// order of the persisted table and keeps every derived output deterministic.
func (c Comprehension) GUIDs(entity string) []string {
	table := c[entity]
	guids := make([]string, 0, len(table))
	for guid := range table {
		guids = append(guids, guid)
	}
	sort.Strings(guids)
	return guids
}

// Intersect merges the named entity of secondary into a copy of primary.
// Records present in both are shallow-merged with secondary winning on
// conflicting fields; records only in secondary are inserted. Entities other
// than the named one are untouched. If entity is empty it is inferred from
// primary.
func Intersect(primary, secondary Comprehension, entity string) (Comprehension, error) {
	name, err := primary.InferEntity(entity)
	if err != nil {
		return nil, errors.Wrap(err, "inferring entity for intersect")
	}

	out := primary.Copy()
	table := out.Entity(name)
	for guid, rec := range secondary[name] {
		if existing, ok := table[guid]; ok {
			table[guid] = merge(existing.Copy(), rec)
		} else {
			table[guid] = rec.Copy()
		}
	}
	return out, nil
}

// ToArray returns the records of one entity table as a list, discarding the
// GUID keys (the GUID stays inside each record's GUID field when present). If
// entity is empty it is inferred.
func (c Comprehension) ToArray(entity string) ([]Record, error) {
	name, err := c.InferEntity(entity)
	if err != nil {
		return nil, errors.Wrap(err, "inferring entity for array conversion")
	}
	if _, ok := c[name]; !ok {
		return nil, errors.Errorf("no entity %s in comprehension", name)
	}
	guids := c.GUIDs(name)
	records := make([]Record, 0, len(guids))
	for _, guid := range guids {
		records = append(records, c[name][guid])
	}
	return records, nil
}
