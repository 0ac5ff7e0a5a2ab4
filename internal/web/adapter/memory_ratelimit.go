package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/web/app"
)

var _ app.RateLimiter = (*MemoryRateLimiter)(nil)

// MemoryRateLimiter is the in-process counterpart of RedisRateLimiter, used
// with the memory session store.
type MemoryRateLimiter struct {
	clock domain.Clock

	mu      sync.Mutex
	windows map[string]rateWindow
}

// pruneThreshold bounds the map: above it, expired windows are dropped on
// the next attempt.
const pruneThreshold = 4096

type rateWindow struct {
	count     int
	expiresAt time.Time
}

// NewMemoryRateLimiter creates a limiter with no recorded attempts.
func NewMemoryRateLimiter(clock domain.Clock) *MemoryRateLimiter {
	return &MemoryRateLimiter{clock: clock, windows: make(map[string]rateWindow)}
}

func (r *MemoryRateLimiter) CheckAndIncrement(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if len(r.windows) > pruneThreshold {
		for k, w := range r.windows {
			if !now.Before(w.expiresAt) {
				delete(r.windows, k)
			}
		}
	}

	w, ok := r.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = rateWindow{expiresAt: now.Add(window)}
	}
	w.count++
	r.windows[key] = w

	return w.count <= limit, nil
}
