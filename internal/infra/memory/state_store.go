// Package memory holds in-process implementations of the persistence
// collaborators, used in tests and single-node demo runs.
package memory

import (
	"context"
	"sync"

	"puzzle-quiz-service/internal/broadcast"
)

// StateStore keeps broadcast state in memory. It survives nothing, which
// is fine for demos; production uses the redis store.
type StateStore struct {
	mu    sync.Mutex
	state broadcast.State
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) Load(_ context.Context) (broadcast.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *StateStore) Save(_ context.Context, state broadcast.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}
