package memory

import (
	"chatwidget-gateway/internal/models"
	"chatwidget-gateway/internal/store"
	"context"
	"sync"

	"github.com/google/uuid"
)

var _ store.Store = (*MemoryStore)(nil)

// MemoryStore keeps snapshots in process. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*models.Snapshot)}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return snap.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.SessionID] = snap.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
