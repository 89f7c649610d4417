package cache

import (
	"context"
	"sync"
	"time"
)

// purgeAbove caps how many idle keys may accumulate before a sweep.
const purgeAbove = 1024

type window struct {
	scores    []float64
	expiresAt time.Time
}

// MemoryWindowStore is an in-process port.WindowStore used in tests and
// when no Redis address is configured. Single mutex; the limiter's call
// rate is bounded by the HTTP layer, so contention is not a concern.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryWindowStore returns an empty in-memory window store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]*window)}
}

// Slide implements port.WindowStore with the same semantics as the Redis
// script: drop scores at or below windowStart, count, insert only while
// under the limit, and return the pre-insert count.
func (m *MemoryWindowStore) Slide(ctx context.Context, key string, windowStart float64, member string, score float64, limit int, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	w := m.windows[key]
	if w == nil || now.After(w.expiresAt) {
		w = &window{}
		m.windows[key] = w
	}

	kept := w.scores[:0]
	for _, s := range w.scores {
		if s > windowStart {
			kept = append(kept, s)
		}
	}
	w.scores = kept

	count := int64(len(w.scores))
	if count < int64(limit) {
		w.scores = append(w.scores, score)
		w.expiresAt = now.Add(ttl)
	}

	if len(m.windows) > purgeAbove {
		m.purgeLocked(now)
	}
	return count, nil
}

func (m *MemoryWindowStore) purgeLocked(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.expiresAt) {
			delete(m.windows, key)
		}
	}
}

// Ping always succeeds; it exists so the store satisfies the same health
// surface as the Redis adapter.
func (m *MemoryWindowStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
