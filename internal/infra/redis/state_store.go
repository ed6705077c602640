// Package redis persists broadcast state in Redis so a restart neither
// re-broadcasts the daily puzzle nor loses the retraction list.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"puzzle-quiz-service/internal/broadcast"
)

const stateKey = "quiz:broadcast:state"

// StateStore stores the broadcast pointer and outstanding message list as
// one JSON value under a fixed key.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// Load returns the persisted state, or the zero state when none exists
// yet (first run).
func (s *StateStore) Load(ctx context.Context) (broadcast.State, error) {
	raw, err := s.client.Get(ctx, stateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return broadcast.State{}, nil
	}
	if err != nil {
		return broadcast.State{}, fmt.Errorf("load broadcast state: %w", err)
	}
	var state broadcast.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return broadcast.State{}, fmt.Errorf("decode broadcast state: %w", err)
	}
	return state, nil
}

func (s *StateStore) Save(ctx context.Context, state broadcast.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode broadcast state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save broadcast state: %w", err)
	}
	return nil
}
