package store

import (
	"fmt"
	"sync"

	"meteor-store/internal/record"
)

// Store is the process-local entity store: one collection of records per
// model, created on demand. There is no backing persistent store; the
// collections are the data.
type Store struct {
	mu     sync.RWMutex
	models map[string]*Collection
}

func New() *Store {
	return &Store{models: make(map[string]*Collection)}
}

// Model returns the collection for the given model, creating it if needed.
func (s *Store) Model(name string) *Collection {
	s.mu.RLock()
	col, ok := s.models[name]
	s.mu.RUnlock()
	if ok {
		return col
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.models[name]; ok {
		return col
	}
	col = &Collection{
		records: make(map[string]*record.Record),
	}
	s.models[name] = col
	return col
}

// ModelNames returns the names of all collections that have been touched.
func (s *Store) ModelNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	return names
}

// Collection holds the records of one model keyed by primary key, in
// insertion order.
type Collection struct {
	mu      sync.RWMutex
	records map[string]*record.Record
	pks     []any // insertion order
}

// Key normalizes a primary-key value to its map key form. UUID strings,
// ints and other scalar key types all compare through this.
func Key(pk any) string {
	return fmt.Sprintf("%v", pk)
}

// Has reports whether a record with the given primary key exists.
func (c *Collection) Has(pk any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[Key(pk)]
	return ok
}

// Get returns the record with the given primary key.
func (c *Collection) Get(pk any) (*record.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[Key(pk)]
	return rec, ok
}

// Put inserts or replaces the record under the given primary key.
// Replacing keeps the original insertion position.
func (c *Collection) Put(pk any, rec *record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key(pk)
	if _, exists := c.records[key]; !exists {
		c.pks = append(c.pks, pk)
	}
	c.records[key] = rec
}

// Delete removes the record with the given primary key, reporting whether
// it was present.
func (c *Collection) Delete(pk any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key(pk)
	if _, ok := c.records[key]; !ok {
		return false
	}
	delete(c.records, key)
	for i, existing := range c.pks {
		if Key(existing) == key {
			c.pks = append(c.pks[:i], c.pks[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns all primary keys in insertion order.
func (c *Collection) Keys() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]any, len(c.pks))
	copy(keys, c.pks)
	return keys
}

// Records returns all records in insertion order.
func (c *Collection) Records() []*record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	recs := make([]*record.Record, 0, len(c.pks))
	for _, pk := range c.pks {
		recs = append(recs, c.records[Key(pk)])
	}
	return recs
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
