// Package boltdb provides a tik.GUIDMapper backed by boltdb, for runs where
// the GUID/ID mappings must survive restarts. Each entity gets its own
// sub-buckets under the three top-level direction buckets.
package boltdb

import (
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var (
	guidToIDBucket = []byte("guidToID")
	idToGUIDBucket = []byte("idToGUID")
	externalBucket = []byte("external")
)

// GUIDMap is a persistent tik.GUIDMapper. Lookups read from disk on every
// call; throughput expectations are modest.
type GUIDMap struct {
	Db *bolt.DB
}

// NewGUIDMap opens (creating if needed) a GUID map at filename.
func NewGUIDMap(filename string) (*GUIDMap, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{guidToIDBucket, idToGUIDBucket, externalBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "creating %s bucket", name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &GUIDMap{Db: db}, nil
}

// Close syncs and closes the underlying boltdb.
func (m *GUIDMap) Close() error {
	if err := m.Db.Sync(); err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return m.Db.Close()
}

func entityBucket(tx *bolt.Tx, top []byte, entity string, create bool) (*bolt.Bucket, error) {
	b := tx.Bucket(top)
	if b == nil {
		return nil, errors.Errorf("missing top-level bucket %s", top)
	}
	if create {
		return b.CreateBucketIfNotExists([]byte(entity))
	}
	return b.Bucket([]byte(entity)), nil
}

func idBytes(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// MapGUIDToID stores both directions of the GUID/ID mapping in one
// transaction.
func (m *GUIDMap) MapGUIDToID(entity, guid string, id int64) error {
	err := m.Db.Update(func(tx *bolt.Tx) error {
		gb, err := entityBucket(tx, guidToIDBucket, entity, true)
		if err != nil {
			return err
		}
		ib, err := entityBucket(tx, idToGUIDBucket, entity, true)
		if err != nil {
			return err
		}
		if err := gb.Put([]byte(guid), idBytes(id)); err != nil {
			return err
		}
		return ib.Put(idBytes(id), []byte(guid))
	})
	return errors.Wrapf(err, "mapping %s %s to %d", entity, guid, id)
}

// IDFromGUID returns the ID stored for guid; ok=false means not found.
func (m *GUIDMap) IDFromGUID(entity, guid string) (int64, bool) {
	var id int64
	var found bool
	m.Db.View(func(tx *bolt.Tx) error {
		gb, err := entityBucket(tx, guidToIDBucket, entity, false)
		if err != nil || gb == nil {
			return nil
		}
		if val := gb.Get([]byte(guid)); val != nil {
			id = int64(binary.BigEndian.Uint64(val))
			found = true
		}
		return nil
	})
	return id, found
}

// GUIDFromID returns the GUID stored for id; ok=false means not found.
func (m *GUIDMap) GUIDFromID(entity string, id int64) (string, bool) {
	var guid string
	var found bool
	m.Db.View(func(tx *bolt.Tx) error {
		ib, err := entityBucket(tx, idToGUIDBucket, entity, false)
		if err != nil || ib == nil {
			return nil
		}
		if val := ib.Get(idBytes(id)); val != nil {
			guid = string(val)
			found = true
		}
		return nil
	})
	return guid, found
}

// MapExternalGUID stores the one-directional external to internal mapping.
func (m *GUIDMap) MapExternalGUID(entity, externalGUID, internalGUID string) error {
	err := m.Db.Update(func(tx *bolt.Tx) error {
		eb, err := entityBucket(tx, externalBucket, entity, true)
		if err != nil {
			return err
		}
		return eb.Put([]byte(externalGUID), []byte(internalGUID))
	})
	return errors.Wrapf(err, "mapping external %s %s", entity, externalGUID)
}

// InternalGUIDFromExternalGUID resolves an external GUID to its internal
// GUID.
func (m *GUIDMap) InternalGUIDFromExternalGUID(entity, externalGUID string) (string, bool) {
	var guid string
	var found bool
	m.Db.View(func(tx *bolt.Tx) error {
		eb, err := entityBucket(tx, externalBucket, entity, false)
		if err != nil || eb == nil {
			return nil
		}
		if val := eb.Get([]byte(externalGUID)); val != nil {
			guid = string(val)
			found = true
		}
		return nil
	})
	return guid, found
}

// IDFromExternalGUID chains the external lookup through the GUID/ID table.
func (m *GUIDMap) IDFromExternalGUID(entity, externalGUID string) (int64, bool) {
	guid, ok := m.InternalGUIDFromExternalGUID(entity, externalGUID)
	if !ok {
		return 0, false
	}
	return m.IDFromGUID(entity, guid)
}
