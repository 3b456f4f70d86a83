package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	l := NewRateLimiter(60)
	require.NotNil(t, l)
	l.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	l.get("10.0.0.1")
	l.get("10.0.0.2")
	assert.Equal(t, 2, l.Len())

	mu.Lock()
	now = now.Add(5 * time.Minute)
	mu.Unlock()
	l.get("10.0.0.2")

	mu.Lock()
	now = now.Add(6 * time.Minute)
	mu.Unlock()
	assert.Equal(t, 1, l.Prune(DefaultLimiterIdle))
	assert.Equal(t, 1, l.Len())
	assert.Zero(t, l.Prune(DefaultLimiterIdle))
}

func TestNilRateLimiterAllowsEverything(t *testing.T) {
	l := NewRateLimiter(0)
	assert.Nil(t, l)
	assert.Zero(t, l.Prune(time.Minute))
	l.RunCleanup(context.Background(), time.Millisecond, time.Minute, zap.NewNop())

	h := l.Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiterCleanupStopsOnCancel(t *testing.T) {
	l := NewRateLimiter(60)
	l.get("10.0.0.1")
	l.now = func() time.Time { return time.Now().Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.RunCleanup(ctx, 5*time.Millisecond, time.Minute, zap.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not stop")
	}
}
