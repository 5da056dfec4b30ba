// memory.go -- in-process session store for single-instance deployments and tests.
package session

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// entry is one session's contents. Its own lock keeps writers to different
// sessions from contending.
type entry struct {
	mu     sync.Mutex
	values map[string]string
}

// MemoryStore keeps sessions in a go-cache with TTL eviction. Safe for concurrent use.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
	// mu guards get-or-create and renew; held only for map operations.
	mu sync.Mutex
}

// NewMemoryStore evicts sessions ttl after their last write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

func (s *MemoryStore) lookup(id string) (*entry, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (s *MemoryStore) Put(_ context.Context, id, key, value string) error {
	s.mu.Lock()
	e, ok := s.lookup(id)
	if !ok {
		e = &entry{values: make(map[string]string)}
	}
	// re-set to push the expiry out
	s.cache.Set(id, e, s.ttl)
	s.mu.Unlock()

	e.mu.Lock()
	e.values[key] = value
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id, key string) (string, bool, error) {
	e, ok := s.lookup(id)
	if !ok {
		return "", false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string, keys ...string) error {
	e, ok := s.lookup(id)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range keys {
		delete(e.values, k)
	}
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

func (s *MemoryStore) Renew(_ context.Context, id string) (string, error) {
	newID, err := NewID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(id)
	if !ok {
		return "", ErrSessionNotFound
	}
	s.cache.Delete(id)
	s.cache.Set(newID, e, s.ttl)
	return newID, nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int { return s.cache.ItemCount() }
