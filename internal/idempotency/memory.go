package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is a single-process Guard for local runs and tests. Production
// deployments with more than one instance need the Redis-backed guard.
type MemoryGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (g *MemoryGuard) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)
	return true, nil
}
