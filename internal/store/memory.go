package store

import (
	"context"
	"sync"

	"github.com/hedgeline/engine/pkg/api"
)

// MemoryStore is the in-process Store. Writers are serialized, and readers
// only ever observe fully merged sequences.
type MemoryStore struct {
	data map[Category]map[string][]api.Record
	mu   sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[Category]map[string][]api.Record{},
	}
}

// Get retrieves a copy of the records cached for a category and key
func (s *MemoryStore) Get(
	_ context.Context, cat Category, key string,
) ([]api.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.data[cat][key]), nil
}

// Set merges records into the sequence cached for a category and key. If
// any record lacks the category's key field, the store is left unchanged.
func (s *MemoryStore) Set(
	_ context.Context, cat Category, key string, recs []api.Record,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := Merge(cat, s.data[cat][key], recs)
	if err != nil {
		return err
	}

	byKey, ok := s.data[cat]
	if !ok {
		byKey = map[string][]api.Record{}
		s.data[cat] = byKey
	}
	byKey[key] = merged
	return nil
}

// Len reports how many records are cached for a category and key
func (s *MemoryStore) Len(cat Category, key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[cat][key])
}

// Export returns a deep copy of the store's full contents
func (s *MemoryStore) Export() Dump {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dump := make(Dump, len(s.data))
	for cat, byKey := range s.data {
		out := make(map[string][]api.Record, len(byKey))
		for key, recs := range byKey {
			out[key] = cloneRecords(recs)
		}
		dump[cat] = out
	}
	return dump
}

// Restore merges the contents of a dump into the store. Sequences already
// present keep their records; dump records with new identities append.
func (s *MemoryStore) Restore(dump Dump) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for cat, byKey := range dump {
		for key, recs := range byKey {
			merged, err := Merge(cat, s.data[cat][key], recs)
			if err != nil {
				return err
			}
			if _, ok := s.data[cat]; !ok {
				s.data[cat] = map[string][]api.Record{}
			}
			s.data[cat][key] = merged
		}
	}
	return nil
}
