// Package sessioncache provides the cache backends behind session.Store:
// an in-process LRU and a Redis-backed store for multi-instance deployments.
package sessioncache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"smartsite/edge-gateway/internal/domain/session"
)

// MemoryStore is an in-process LRU keyed by raw token. The LRU capacity
// bounds the cache independently of Purge, so the entry cap holds even
// between maintenance passes.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewMemoryStore creates a store holding at most maxSize entries.
func NewMemoryStore(maxSize int) (*MemoryStore, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: cache}, nil
}

func (s *MemoryStore) Get(token string) (session.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.cache.Get(token)
	if !ok {
		return session.Entry{}, false
	}
	return val.(session.Entry), true
}

func (s *MemoryStore) Set(token string, entry session.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(token, entry)
}

// Purge removes entries written before olderThan, then evicts oldest-first
// until at most maxEntries remain.
func (s *MemoryStore) Purge(olderThan time.Time, maxEntries int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.cache.Keys() {
		val, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		if val.(session.Entry).Timestamp.Before(olderThan) {
			s.cache.Remove(key)
			removed++
		}
	}
	for maxEntries > 0 && s.cache.Len() > maxEntries {
		s.cache.RemoveOldest()
		removed++
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
