package session

import (
	"chatwidget-gateway/internal/store"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type entry struct {
	controller *Controller
	lastUsed   time.Time
}

// Manager keeps live controllers in memory and persists their snapshots.
// A session evicted from memory is restored from the store on next use.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	store    store.Store
	backend  Backend
	opts     Options
	logger   *zap.Logger
}

// NewManager creates a Manager.
func NewManager(st store.Store, b Backend, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		sessions: make(map[uuid.UUID]*entry),
		store:    st,
		backend:  b,
		opts:     opts,
		logger:   opts.Logger.Named("session"),
	}
}

// Create starts a new session and persists its greeting.
func (m *Manager) Create(ctx context.Context) (*Controller, error) {
	c := NewController(uuid.New(), m.backend, m.opts)
	if err := m.store.Save(ctx, c.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}
	m.remember(c)
	m.logger.Info("session created", zap.String("session_id", c.ID().String()))
	return c, nil
}

// Get returns the live controller for id, restoring it from the store if needed.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Controller, error) {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.lastUsed = m.opts.Now()
		m.mu.Unlock()
		return e.controller, nil
	}
	m.mu.Unlock()

	snap, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another request may have restored it while we were loading
	if e, ok := m.sessions[id]; ok {
		e.lastUsed = m.opts.Now()
		return e.controller, nil
	}
	c := RestoreController(snap, m.backend, m.opts)
	m.sessions[id] = &entry{controller: c, lastUsed: m.opts.Now()}
	m.logger.Info("session restored", zap.String("session_id", id.String()))
	return c, nil
}

// Save persists the controller's current snapshot. Saves of one controller
// are serialised, and the snapshot is taken only once the previous write
// has finished, so the store never moves backwards.
func (m *Manager) Save(ctx context.Context, c *Controller) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if err := m.store.Save(ctx, c.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", c.ID(), err)
	}
	return nil
}

// End forgets the session and deletes its stored snapshot.
func (m *Manager) End(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	m.logger.Info("session ended", zap.String("session_id", id.String()))
	return nil
}

// EvictIdle drops controllers unused for longer than maxIdle from memory and
// returns how many were dropped. Their snapshots stay in the store.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.opts.Now().Add(-maxIdle)
	removed := 0
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) && !e.controller.busy() {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remember(c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[c.ID()] = &entry{controller: c, lastUsed: m.opts.Now()}
}

func (c *Controller) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatBusy || c.bookingInFlight > 0
}
