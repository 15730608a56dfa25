// Package docstore implements the authoritative in-memory document
// store. It owns the mapping between stable document ids and the dense
// uint32 handles the indexes are keyed by.
//
// The store is the source of truth: indexes can always be rebuilt from
// a Scan. Every upsert bumps the entry version, so a stale async index
// application can be detected and discarded.
package docstore

import (
	"iter"
	"slices"
	"sync"

	"github.com/hupe1980/fusego/metadata"
	"github.com/hupe1980/fusego/model"
)

// Entry is a stored document together with its index handle and
// write version.
type Entry struct {
	ID      model.DocumentID
	Handle  uint32
	Vector  []float32
	Payload map[string]any
	Version uint64
}

// Store maps document ids to entries and handles back to ids.
type Store struct {
	mu       sync.RWMutex
	entries  map[model.DocumentID]*Entry
	byHandle map[uint32]model.DocumentID
	version  uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries:  make(map[model.DocumentID]*Entry),
		byHandle: make(map[uint32]model.DocumentID),
	}
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Upsert stores the document under a fresh handle and returns the
// previous entry for the id, if any. The previous entry's handle stays
// mapped until the caller has torn down its index state and calls
// Release. Vector and payload are copied, so later caller-side
// mutation cannot reach the stored entry.
func (s *Store) Upsert(id model.DocumentID, handle uint32, vector []float32, payload map[string]any) (prev *Entry, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.entries[id]

	s.version++

	e := &Entry{
		ID:      id,
		Handle:  handle,
		Vector:  slices.Clone(vector),
		Payload: metadata.ClonePayload(payload),
		Version: s.version,
	}

	s.entries[id] = e
	s.byHandle[handle] = id

	return prev, e.Version
}

// Get returns the entry for the id.
func (s *Store) Get(id model.DocumentID) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]

	return e, ok
}

// ByHandle resolves a handle back to its entry. Returns false when the
// handle is unmapped or no longer refers to the id's current version.
func (s *Store) ByHandle(handle uint32) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHandle[handle]
	if !ok {
		return nil, false
	}

	e, ok := s.entries[id]
	if !ok || e.Handle != handle {
		return nil, false
	}

	return e, true
}

// Delete removes the id and returns its entry. The entry's handle is
// unmapped immediately.
func (s *Store) Delete(id model.DocumentID) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}

	delete(s.entries, id)
	delete(s.byHandle, e.Handle)

	return e, true
}

// Release unmaps a superseded handle. Entries keep their current
// handle; only stale handle mappings left behind by an upsert are
// affected.
func (s *Store) Release(handle uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHandle[handle]
	if !ok {
		return
	}

	if e, ok := s.entries[id]; ok && e.Handle == handle {
		return
	}

	delete(s.byHandle, handle)
}

// Scan iterates over all entries in unspecified order. The snapshot of
// ids is taken up front, so concurrent writes during iteration are
// safe; entries deleted mid-scan are skipped.
func (s *Store) Scan() iter.Seq2[model.DocumentID, *Entry] {
	s.mu.RLock()
	ids := make([]model.DocumentID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	return func(yield func(model.DocumentID, *Entry) bool) {
		for _, id := range ids {
			s.mu.RLock()
			e, ok := s.entries[id]
			s.mu.RUnlock()

			if !ok {
				continue
			}

			if !yield(id, e) {
				return
			}
		}
	}
}
