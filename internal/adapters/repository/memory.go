package repository

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps the most recent records in a fixed-size ring.
type MemoryStore struct {
	mu     sync.RWMutex
	ring   []Record
	next   int
	size   int
	ids    map[string]struct{}
	closed bool
}

// NewMemoryStore creates an empty in-memory history.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		ring: make([]Record, o.maxRecords),
		ids:  make(map[string]struct{}, o.maxRecords),
	}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, dup := s.ids[r.ID]; dup {
		return nil
	}
	if s.size == len(s.ring) {
		delete(s.ids, s.ring[s.next].ID)
	} else {
		s.size++
	}
	r.Features = maps.Clone(r.Features)
	s.ring[s.next] = r
	s.ids[r.ID] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	n := min(limit, s.size)
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		idx := (s.next - 1 - i + len(s.ring)) % len(s.ring)
		out[i] = s.ring[idx]
		out[i].Features = maps.Clone(out[i].Features)
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.size, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
