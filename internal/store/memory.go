package store

import (
	"context"
	"sync"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// MemoryStore implements Store in memory. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu    sync.RWMutex
	snap  *model.Snapshot
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil, nil
	}
	// Return a copy to avoid external mutation.
	copy := s.snap.Clone()
	return &copy, nil
}

func (s *MemoryStore) Save(_ context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := snap.Clone()
	s.snap = &copy
	s.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
