package trcsession

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in memory. Attribute values are stored as-is, so
// values implementing [github.com/sessiontrace/trc/trcuser.Accessor] remain
// traversable by attribute paths.
type MemoryStore struct {
	mtx      sync.RWMutex
	sessions map[string]map[string]any
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]map[string]any{},
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = map[string]any{}
	}
	return nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	_, ok := s.sessions[id]
	return ok, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id, name string) (any, bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	attrs, ok := s.sessions[id]
	if !ok {
		return nil, false, ErrNoSession
	}

	v, ok := attrs[name]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, id, name string, value any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	attrs, ok := s.sessions[id]
	if !ok {
		return ErrNoSession
	}

	if value == nil {
		delete(attrs, name)
		return nil
	}

	attrs[name] = value
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.sessions, id)
	return nil
}

// Len returns the number of sessions in the store.
func (s *MemoryStore) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return len(s.sessions)
}
