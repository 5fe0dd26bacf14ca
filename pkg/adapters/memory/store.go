// Package memory provides in-process adapters: the default checkpoint store
// and a seeded document retriever. Both are safe for concurrent use.
package memory

import (
	"context"
	"sync"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
type Store struct {
	data map[string]*domain.ConversationState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ConversationState),
	}
}

// Put persists the state in memory. The state is deep-copied so later
// mutations by the caller cannot leak into the store.
func (s *Store) Put(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	cp := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[conversationID] = cp
	return nil
}

// Get retrieves a deep copy of the stored state.
func (s *Store) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return state.Clone(), nil
}

// Delete removes the checkpoint.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, conversationID)
	return nil
}

// List returns the stored conversation ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
