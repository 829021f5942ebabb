package chart

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// Store persists rendered charts by cache key. Get reports ok=false on a
// miss; a miss is never an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NullStore caches nothing.
type NullStore struct{}

func (NullStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NullStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullStore) Delete(context.Context, string) error { return nil }
func (NullStore) Close() error { return nil }

// MemoryStore is an in-process LRU with per-entry expiry.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore keeps at most maxEntries charts; zero means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryStore{cache: lru.New(maxEntries), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry := v.(memoryEntry)
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.cache.Remove(key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	entry := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.cache.Add(key, entry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	m.cache.Remove(key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.cache.Clear()
	m.mu.Unlock()
	return nil
}
