package session

import (
	"chatwidget-gateway/internal/models"
	"chatwidget-gateway/internal/store"
	"chatwidget-gateway/internal/store/memory"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	store.Store
	err error
}

func (f failingStore) Save(context.Context, *models.Snapshot) error { return f.err }

func TestManagerCreateAndGet(t *testing.T) {
	ctx := context.Background()
	st := memory.NewMemoryStore()
	m := NewManager(st, &fakeBackend{}, testOptions())

	c, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	stored, err := st.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, DefaultGreeting, stored.Messages[0].Content)

	same, err := m.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Same(t, c, same)

	_, err = m.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerRestoresEvictedSession(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	var mu sync.Mutex
	opts := Options{Now: func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}}
	st := memory.NewMemoryStore()
	m := NewManager(st, &fakeBackend{}, opts)

	c, err := m.Create(ctx)
	require.NoError(t, err)
	c.SendMessage(ctx, "hello")
	require.NoError(t, m.Save(ctx, c))

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	assert.Equal(t, 1, m.EvictIdle(30*time.Minute))
	assert.Zero(t, m.Len())

	restored, err := m.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.NotSame(t, c, restored)
	assert.Equal(t, c.Snapshot().Messages, restored.Snapshot().Messages)
	assert.Equal(t, 1, m.Len())

	snap := restored.SendMessage(ctx, "again")
	assert.Equal(t, "msg-4", snap.Messages[3].ID)
}

func TestManagerKeepsRecentSessions(t *testing.T) {
	m := NewManager(memory.NewMemoryStore(), &fakeBackend{}, testOptions())
	_, err := m.Create(context.Background())
	require.NoError(t, err)

	assert.Zero(t, m.EvictIdle(time.Minute))
	assert.Equal(t, 1, m.Len())
}

func TestManagerCreatePersistFailure(t *testing.T) {
	boom := errors.New("disk full")
	m := NewManager(failingStore{Store: memory.NewMemoryStore(), err: boom}, &fakeBackend{}, testOptions())

	_, err := m.Create(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, m.Len())
}

func TestRunCleanupStopsOnCancel(t *testing.T) {
	m := NewManager(memory.NewMemoryStore(), &fakeBackend{}, Options{})
	_, err := m.Create(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunCleanup(ctx, 5*time.Millisecond, 0)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not stop")
	}
}

// gatedStore holds the first Save issued after it is armed until release is closed.
type gatedStore struct {
	store.Store
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, snap *models.Snapshot) error {
	g.mu.Lock()
	hold := g.armed
	g.armed = false
	g.mu.Unlock()
	if hold {
		close(g.entered)
		<-g.release
	}
	return g.Store.Save(ctx, snap)
}

func TestManagerSaveKeepsLatestTranscript(t *testing.T) {
	ctx := context.Background()
	st := &gatedStore{Store: memory.NewMemoryStore(), entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(st, &fakeBackend{}, testOptions())
	c, err := m.Create(ctx)
	require.NoError(t, err)

	c.SendMessage(ctx, "first")
	st.mu.Lock()
	st.armed = true
	st.mu.Unlock()
	firstDone := make(chan error, 1)
	go func() { firstDone <- m.Save(ctx, c) }()
	<-st.entered

	c.SendMessage(ctx, "second")
	secondDone := make(chan error, 1)
	go func() { secondDone <- m.Save(ctx, c) }()

	close(st.release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	stored, err := st.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 5)
	assert.Equal(t, c.Snapshot().Messages, stored.Messages)
}

func TestManagerEndDeletesSession(t *testing.T) {
	ctx := context.Background()
	st := memory.NewMemoryStore()
	m := NewManager(st, &fakeBackend{}, testOptions())
	c, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, m.End(ctx, c.ID()))
	assert.Zero(t, m.Len())
	_, err = st.Get(ctx, c.ID())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = m.Get(ctx, c.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, m.End(ctx, c.ID()), ErrSessionNotFound)
}
