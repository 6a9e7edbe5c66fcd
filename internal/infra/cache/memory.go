package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the LRU capacity used when none is configured.
const DefaultSize = 1000

type entry struct {
	value   string
	expires time.Time // zero means no expiry
}

// MemoryStore is an in-process Store bounded by an LRU.
// Expired entries are dropped lazily on Get.
type MemoryStore struct {
	cache *lru.Cache[string, entry]
	now   func() time.Time
}

// NewMemoryStore creates an LRU store holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryStore{cache: c, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	e, ok := s.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.cache.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.cache.Add(key, e)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}

// Len reports the number of entries, including expired ones not yet evicted.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
