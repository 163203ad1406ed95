package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is a concurrency-safe in-process cache backend.
// It is used by single-process deployments and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[weather.CacheKey]memoryEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		data: make(map[weather.CacheKey]memoryEntry),
		now:  now,
	}
}

// Save overwrites the entry for key.
func (s *MemoryStore) Save(_ context.Context, key weather.CacheKey, payload []byte, ttl time.Duration) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = memoryEntry{payload: buf, expiresAt: s.now().Add(ttl)}
	return nil
}

// Load returns the payload for key unless it is absent or expired. Expired entries are evicted.
func (s *MemoryStore) Load(_ context.Context, key weather.CacheKey) ([]byte, error) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, weather.ErrCacheMiss
	}
	if !e.expiresAt.After(now) {
		s.mu.Lock()
		if cur, ok := s.data[key]; ok && !cur.expiresAt.After(now) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return nil, weather.ErrCacheMiss
	}

	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, nil
}

func (s *MemoryStore) Invalidate(_ context.Context, key weather.CacheKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) InvalidateAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[weather.CacheKey]memoryEntry)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
