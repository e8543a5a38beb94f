// Package memory provides in-process adapters: a SnapshotStore for tests and
// single-instance deployments, and an EntityStore backed by a seeded document
// table.
package memory

import (
	"context"
	"sync"

	"github.com/policypal/palgraph/pkg/domain"
)

// Store implements ports.SnapshotStore in memory. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.State
}

// NewStore creates an empty in-memory snapshot store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.State)}
}

// Put persists a deep copy of the state so later caller mutations can never
// leak into the store.
func (s *Store) Put(ctx context.Context, threadID string, state *domain.State) error {
	clone := state.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[threadID] = clone
	return nil
}

// Get returns a deep copy of the stored state.
func (s *Store) Get(ctx context.Context, threadID string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[threadID]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	return state.Clone(), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

// List returns the thread ids with a snapshot.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
