package integration

import (
	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
)

// Set holds one adapter per entity, all sharing an API, a GUID map, and a
// marshal GUID prefix.
type Set struct {
	GUIDPrefix string

	api      API
	guids    tik.GUIDMapper
	adapters map[string]*Adapter
}

// NewSet creates an adapter set. guidPrefix becomes the first segment of
// every adapter's marshal GUIDs; empty means the default.
func NewSet(api API, guids tik.GUIDMapper, guidPrefix string) *Set {
	if guidPrefix == "" {
		guidPrefix = "INTG-DEF"
	}
	return &Set{
		GUIDPrefix: guidPrefix,
		api:        api,
		guids:      guids,
		adapters:   map[string]*Adapter{},
	}
}

// Register creates and registers an adapter for entity with default
// configuration, using the entity's capital letters as its GUID prefix
// segment. Registering the same entity twice is an error.
func (s *Set) Register(entity string) (*Adapter, error) {
	if _, exists := s.adapters[entity]; exists {
		return nil, errors.Errorf("adapter for %s already registered", entity)
	}
	cfg := NewConfig(entity)
	cfg.GUIDPrefix = s.GUIDPrefix
	cfg.EntityGUIDPrefix = "E-" + CapitalPrefix(entity)
	a := NewAdapter(cfg, s.api, s.guids)
	s.adapters[entity] = a
	return a, nil
}

// RegisterConfig registers an adapter with an explicit configuration. The
// set's GUID prefix overrides the config's.
func (s *Set) RegisterConfig(cfg Config) (*Adapter, error) {
	if _, exists := s.adapters[cfg.Entity]; exists {
		return nil, errors.Errorf("adapter for %s already registered", cfg.Entity)
	}
	cfg.GUIDPrefix = s.GUIDPrefix
	a := NewAdapter(cfg, s.api, s.guids)
	s.adapters[cfg.Entity] = a
	return a, nil
}

// Adapter returns the registered adapter for entity. Using an entity that
// was never registered is a programming error and aborts the run upstream.
func (s *Set) Adapter(entity string) (*Adapter, error) {
	a, ok := s.adapters[entity]
	if !ok {
		return nil, errors.Errorf("no adapter registered for %s", entity)
	}
	return a, nil
}
