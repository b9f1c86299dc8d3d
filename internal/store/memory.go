package store

import (
	"context"
	"sync"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// MemoryStore is an in-process, non-persistent SessionStore, used for
// tests and for sessions explicitly configured without a durable
// backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]types.SessionData
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]types.SessionData)}
}

func (s *MemoryStore) Save(_ context.Context, data types.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[data.ID] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (types.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[id]
	if !ok {
		return types.SessionData{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Exists(_ context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok
}

func (s *MemoryStore) HealthCheck(_ context.Context) error { return nil }

func (s *MemoryStore) BackendName() string { return "memory" }
