// Package memstore is an in-process FeatureStore. Contents are lost on exit;
// it backs single-node deployments and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/region-sentinel/internal/domain"
)

// Store implements domain.FeatureStore, domain.SyncCommitter and
// domain.RecordPruner. Safe for concurrent use. Tag maps are copied on the
// way in and out, so callers never share them with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]domain.NormalizedFeature
	settings    map[string][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]domain.NormalizedFeature),
		settings:    make(map[string][]byte),
	}
}

// GetAllRecords returns the collection's records ordered by id.
func (s *Store) GetAllRecords(_ context.Context, collection string) ([]domain.NormalizedFeature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.collections[collection]
	out := make([]domain.NormalizedFeature, 0, len(c))
	for _, f := range c {
		f.Tags = f.Tags.Clone()
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) BatchUpsertRecords(_ context.Context, collection string, records []domain.NormalizedFeature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(collection, records)
	return nil
}

func (s *Store) GetNamedSetting(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.settings[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) SetNamedSetting(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = append([]byte(nil), value...)
	return nil
}

// CommitSync writes records and the version setting under one lock, so
// readers never observe one without the other.
func (s *Store) CommitSync(_ context.Context, collection string, records []domain.NormalizedFeature, versionKey string, version []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(collection, records)
	s.settings[versionKey] = append([]byte(nil), version...)
	return nil
}

func (s *Store) DeleteRecords(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collections[collection]
	for _, id := range ids {
		delete(c, id)
	}
	return nil
}

func (s *Store) upsertLocked(collection string, records []domain.NormalizedFeature) {
	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]domain.NormalizedFeature, len(records))
		s.collections[collection] = c
	}
	for _, r := range records {
		r.Tags = r.Tags.Clone()
		c[r.ID] = r
	}
}
