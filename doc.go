// Package tik is the Tabular Integration Kit. It turns tabular data into
// entity "comprehensions" and pushes them to a downstream REST API.
//
// The ingestion pipeline has three stages.
//
// 1. Source
//
//    A tik.Source yields raw records one at a time. The csv subpackage reads
//    delimited files (CSV and TSV), and SliceSource wraps records already in
//    memory (JSON arrays, REST request bodies, tests). A Source also reports
//    its column order when it has one, since the first column seeds the
//    derived GUID template when no configuration names one.
//
// 2. Transformer
//
//    The Transformer maps each raw record through a resolved MappingConfig
//    (the merge of an implicit layer derived from the data, an explicit
//    mapping file, and user overrides) into a normalized record keyed by a
//    templated GUID, and places it in a Comprehension: a map from entity name
//    to a GUID-keyed record table. Records hitting the same GUID merge;
//    records without a GUID are set aside as bad records rather than failing
//    the run.
//
// 3. Integration
//
//    The integration subpackage reads a comprehension and pushes it to a
//    REST API: it fetches the entity schema, marshals each record (resolving
//    cross-entity GUID references to the numeric IDs the server assigned,
//    truncating to schema limits), and upserts with bounded retry. GUIDMap
//    keeps the GUID/ID bookkeeping; the boltdb subpackage persists it.
//
// The transform, compose, and server subpackages wrap these stages as CLI
// commands and REST endpoints.

package tik
