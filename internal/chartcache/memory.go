package chartcache

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryEntries bounds the in-process store.
const DefaultMemoryEntries = 256

type memoryEntry struct {
	data      []byte
	cachedAt  time.Time
	expiresAt time.Time
	hitCount  int
}

// MemoryStore is an in-process Store used when Redis is not configured.
type MemoryStore struct {
	entries   map[string]memoryEntry
	mutex     sync.RWMutex
	maxSize   int
	hitCount  int64
	missCount int64
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewMemoryStore creates a store holding at most maxSize entries, evicting the
// oldest first. A maxSize of zero stores nothing.
func NewMemoryStore(maxSize int) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]memoryEntry),
		maxSize:  maxSize,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go s.cleanup(5 * time.Minute)

	return s
}

// Get returns a copy of the cached bytes
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheKeyEmpty
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.entries[key]
	if !exists || s.expired(entry) {
		s.missCount++
		return nil, ErrCacheMiss
	}

	entry.hitCount++
	s.entries[key] = entry
	s.hitCount++

	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

// Set stores a copy of data
func (s *MemoryStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if err := checkSet(key, ttl); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.maxSize <= 0 {
		return nil
	}

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	now := s.now()
	entry := memoryEntry{data: append([]byte(nil), data...), cachedAt: now}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// GetStats returns cache statistics
func (s *MemoryStore) GetStats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	totalRequests := s.hitCount + s.missCount
	hitRatio := float64(0)
	if totalRequests > 0 {
		hitRatio = float64(s.hitCount) / float64(totalRequests)
	}

	return map[string]interface{}{
		"entries":    len(s.entries),
		"max_size":   s.maxSize,
		"hit_count":  s.hitCount,
		"miss_count": s.missCount,
		"hit_ratio":  hitRatio,
	}
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

func (s *MemoryStore) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range s.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.cachedAt
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

func (s *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mutex.Lock()
			for key, entry := range s.entries {
				if s.expired(entry) {
					delete(s.entries, key)
				}
			}
			s.mutex.Unlock()
		case <-s.stopChan:
			return
		}
	}
}
