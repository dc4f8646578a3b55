package tik

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// GUIDMapper is the registry mapping an entity's internal GUIDs to the
// numeric IDs the downstream storage system assigns, plus a one-directional
// table from external-system GUIDs to internal GUIDs. Lookups report misses
// with ok=false and never fail; registration may fail for persistent
// implementations.
type GUIDMapper interface {
	MapGUIDToID(entity, guid string, id int64) error
	IDFromGUID(entity, guid string) (int64, bool)
	GUIDFromID(entity string, id int64) (string, bool)
	MapExternalGUID(entity, externalGUID, internalGUID string) error
	InternalGUIDFromExternalGUID(entity, externalGUID string) (string, bool)
	IDFromExternalGUID(entity, externalGUID string) (int64, bool)
}

// GUIDMap is the in-memory GUIDMapper. Entity namespaces are created lazily
// on first reference, and both directions of the GUID/ID mapping are kept in
// lockstep: after any MapGUIDToID, GUIDFromID(IDFromGUID(g)) == g, with
// last-write-wins on collisions and no further uniqueness enforcement.
//
// Everything stays in memory for the life of the map. Throughput is low
// enough in practice that this does not need external persistence; the
// boltdb subpackage has a persistent implementation for runs that must
// survive restarts.
type GUIDMap struct {
	mu       sync.RWMutex
	entities map[string]*entityGUIDs
}

type entityGUIDs struct {
	guidToID map[string]int64
	idToGUID map[int64]string
	external map[string]string
}

// NewGUIDMap creates an empty GUIDMap.
func NewGUIDMap() *GUIDMap {
	return &GUIDMap{entities: map[string]*entityGUIDs{}}
}

func (m *GUIDMap) entity(name string) *entityGUIDs {
	m.mu.RLock()
	e, ok := m.entities[name]
	m.mu.RUnlock()
	if ok {
		return e
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.entities[name]; ok {
		return e
	}
	e = &entityGUIDs{
		guidToID: map[string]int64{},
		idToGUID: map[int64]string{},
		external: map[string]string{},
	}
	m.entities[name] = e
	return e
}

// MapGUIDToID registers (or overwrites) both directions of the GUID/ID
// mapping atomically.
func (m *GUIDMap) MapGUIDToID(entity, guid string, id int64) error {
	e := m.entity(entity)
	m.mu.Lock()
	defer m.mu.Unlock()
	e.guidToID[guid] = id
	e.idToGUID[id] = guid
	return nil
}

// IDFromGUID returns the ID mapped to guid; ok=false means not found.
func (m *GUIDMap) IDFromGUID(entity, guid string) (int64, bool) {
	e := m.entity(entity)
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := e.guidToID[guid]
	return id, ok
}

// GUIDFromID returns the GUID mapped to id; ok=false means not found.
func (m *GUIDMap) GUIDFromID(entity string, id int64) (string, bool) {
	e := m.entity(entity)
	m.mu.RLock()
	defer m.mu.RUnlock()
	guid, ok := e.idToGUID[id]
	return guid, ok
}

// MapExternalGUID registers an external-system GUID against an internal GUID.
// One-directional; overwrites silently.
func (m *GUIDMap) MapExternalGUID(entity, externalGUID, internalGUID string) error {
	e := m.entity(entity)
	m.mu.Lock()
	defer m.mu.Unlock()
	e.external[externalGUID] = internalGUID
	return nil
}

// InternalGUIDFromExternalGUID resolves an external GUID to the internal GUID
// it was mapped to.
func (m *GUIDMap) InternalGUIDFromExternalGUID(entity, externalGUID string) (string, bool) {
	e := m.entity(entity)
	m.mu.RLock()
	defer m.mu.RUnlock()
	guid, ok := e.external[externalGUID]
	return guid, ok
}

// IDFromExternalGUID chains the external lookup through the GUID/ID table; a
// miss on either hop is a miss.
func (m *GUIDMap) IDFromExternalGUID(entity, externalGUID string) (int64, bool) {
	guid, ok := m.InternalGUIDFromExternalGUID(entity, externalGUID)
	if !ok {
		return 0, false
	}
	return m.IDFromGUID(entity, guid)
}

// EntityReader reads a single entity record by GUID from the remote system.
// Implemented by client.Client.
type EntityReader interface {
	EntityByGUID(ctx context.Context, entity, guid string) (map[string]interface{}, error)
}

// ResolveID looks an ID up locally and falls back to the remote entity-by-GUID
// endpoint on a miss, caching the result in the map on success. Remote errors
// propagate; a remote record without the expected ID{Entity} field resolves
// to ok=false with no error.
func ResolveID(ctx context.Context, m GUIDMapper, r EntityReader, entity, guid string) (int64, bool, error) {
	if id, ok := m.IDFromGUID(entity, guid); ok {
		return id, true, nil
	}
	if r == nil {
		return 0, false, nil
	}
	body, err := r.EntityByGUID(ctx, entity, guid)
	if err != nil {
		return 0, false, errors.Wrapf(err, "reading %s by GUID %s", entity, guid)
	}
	raw, ok := body["ID"+entity]
	if !ok {
		return 0, false, nil
	}
	id, err := cast.ToInt64E(raw)
	if err != nil || id == 0 {
		return 0, false, nil
	}
	if err := m.MapGUIDToID(entity, guid, id); err != nil {
		return 0, false, errors.Wrap(err, "caching resolved ID")
	}
	return id, true, nil
}
