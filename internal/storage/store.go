package storage

import (
	"fmt"

	"logdesk/internal/types"
)

// Store is the index-addressed record collection shared by the query engine
// and the session. The set of records and their order never change after
// construction; the resolved flag is the only mutable cell and is written
// exclusively through SetResolved.
//
// Store is not safe for concurrent use; callers serialise access.
type Store struct {
	records []types.LogRecord
	byID    map[string]int
	version uint64
}

// NewStore builds a store from an ordered dataset. Duplicate ids are rejected.
func NewStore(records []types.LogRecord) (*Store, error) {
	s := &Store{
		records: make([]types.LogRecord, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	copy(s.records, records)

	for i, r := range s.records {
		if _, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate log id %q at position %d", r.ID, i)
		}
		s.byID[r.ID] = i
	}
	return s, nil
}

// Len returns the collection size
func (s *Store) Len() int {
	return len(s.records)
}

// At returns a copy of the record at index i
func (s *Store) At(i int) types.LogRecord {
	return s.records[i]
}

// Lookup returns the index of the record with the given id
func (s *Store) Lookup(id string) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// Get returns a copy of the record with the given id
func (s *Store) Get(id string) (types.LogRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return types.LogRecord{}, false
	}
	return s.records[i], true
}

// SetResolved updates the resolution status of the record at index i and
// reports whether the value changed
func (s *Store) SetResolved(i int, resolved bool) bool {
	if s.records[i].Resolved == resolved {
		return false
	}
	s.records[i].Resolved = resolved
	s.version++
	return true
}

// Version increases on every effective mutation
func (s *Store) Version() uint64 {
	return s.version
}

// All returns a copy of every record in dataset order
func (s *Store) All() []types.LogRecord {
	out := make([]types.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}
