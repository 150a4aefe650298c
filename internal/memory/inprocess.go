package memory

import (
	"context"
	"sync"
)

// InProcessStore keeps conversations in a map. Contents are lost on exit.
type InProcessStore struct {
	mu    sync.RWMutex
	turns map[Key][]Turn
}

// NewInProcessStore creates an empty in-process store.
func NewInProcessStore() *InProcessStore {
	return &InProcessStore{turns: make(map[Key][]Turn)}
}

// Recent returns up to limit of the newest turns, oldest first.
func (s *InProcessStore) Recent(_ context.Context, key Key, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[key]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Turn, len(all))
	copy(out, all)
	return out, nil
}

// Append adds turns to the end of the conversation.
func (s *InProcessStore) Append(_ context.Context, key Key, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[key] = append(s.turns[key], turns...)
	return nil
}

// Close is a no-op.
func (s *InProcessStore) Close() error { return nil }
