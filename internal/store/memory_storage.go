package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStorage is an in-process Storage for tests and single-node setups
// without redis. Expired keys are reaped lazily on access.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	data      []byte           // encoded value, nil when only counters were set
	counters  map[string]int64 // hash fields bumped via IncrAttr
	expiresAt time.Time        // zero means no expiry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]*memoryEntry),
	}
}

// entry returns the live entry for key, reaping it if expired.
func (s *MemoryStorage) entry(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStorage) upsert(key string) *memoryEntry {
	e := s.entry(key)
	if e == nil {
		e = &memoryEntry{counters: make(map[string]int64)}
		s.entries[key] = e
	}
	return e
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	if e == nil || e.data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(e.data, val)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.upsert(key)
	e.data = data
	if expiresIn > 0 {
		e.expiresAt = time.Now().Add(expiresIn)
	} else {
		e.expiresAt = time.Time{}
	}
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry(key) == nil {
		return ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

func (s *MemoryStorage) Expire(ctx context.Context, key string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(key); e != nil {
		e.expiresAt = expiresAt
	}
	return nil
}

func (s *MemoryStorage) IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.upsert(key)
	e.counters[field] += delta
	return e.counters[field], nil
}
