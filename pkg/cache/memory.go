// Package cache provides a small in-memory TTL cache for read-heavy
// lookups that tolerate briefly stale values.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
	createdAt time.Time
}

// Memory is a size-bounded TTL cache. When full, the oldest entry is
// evicted to make room.
type Memory[V any] struct {
	mu      sync.RWMutex
	data    map[string]entry[V]
	ttl     time.Duration
	maxSize int
}

// NewMemory creates a cache with the given default TTL and size bound.
// maxSize <= 0 means unbounded.
func NewMemory[V any](defaultTTL time.Duration, maxSize int) *Memory[V] {
	return &Memory[V]{
		data:    make(map[string]entry[V]),
		ttl:     defaultTTL,
		maxSize: maxSize,
	}
}

// Set stores a value under key. ttl == 0 uses the default.
func (m *Memory[V]) Set(key string, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = m.ttl
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSize > 0 && len(m.data) >= m.maxSize {
		if _, exists := m.data[key]; !exists {
			m.evictOldest()
		}
	}

	now := time.Now()
	m.data[key] = entry[V]{value: value, expiresAt: now.Add(ttl), createdAt: now}
}

// Get returns the cached value if present and not expired.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes a key. No-op if absent.
func (m *Memory[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// caller holds m.mu
func (m *Memory[V]) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, e := range m.data {
		if first || e.createdAt.Before(oldest) {
			oldestKey, oldest = key, e.createdAt
			first = false
		}
	}
	if !first {
		delete(m.data, oldestKey)
	}
}
