package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultCleanupInterval is how often idle sessions are swept from memory.
const DefaultCleanupInterval = time.Minute

// RunCleanup evicts sessions idle for longer than maxIdle every interval
// until ctx is cancelled.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session cleanup stopping")
			return
		case <-ticker.C:
			start := time.Now()
			if removed := m.EvictIdle(maxIdle); removed > 0 {
				m.logger.Info("evicted idle sessions",
					zap.Int("removed", removed),
					zap.Int("remaining", m.Len()),
					zap.Duration("elapsed", time.Since(start)),
				)
			}
		}
	}
}
