package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-instance
// deployments. Windows expire by wall clock; expired entries are dropped on
// access and garbage-collected when the map grows past maxKeys.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*memoryWindow
	maxKeys int
}

type memoryWindow struct {
	count     int64
	windowEnd time.Time
}

// MemoryStoreConfig configures a MemoryStore. The zero value is usable.
type MemoryStoreConfig struct {
	// Now overrides the clock, for tests.
	Now func() time.Time

	// MaxKeys bounds the number of tracked windows.
	MaxKeys int
}

// NewMemoryStore creates a MemoryStore.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &MemoryStore{
		now:     cfg.Now,
		windows: make(map[string]*memoryWindow),
		maxKeys: cfg.MaxKeys,
	}
}

// Incr implements Store with the same semantics as the Redis script: the
// expiry is set when the window is created and never refreshed by later
// increments.
func (m *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && !now.Before(w.windowEnd) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.gc(now)
		}
		w = &memoryWindow{windowEnd: now.Add(window)}
		m.windows[key] = w
	}

	w.count++
	return w.count, w.windowEnd.Sub(now), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) gc(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.windowEnd) {
			delete(m.windows, key)
		}
	}
}
