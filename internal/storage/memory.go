package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	value   string
	expires time.Time
}

// MemoryStore keeps entries in process. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	limit   int
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. limit <= 0 disables the
// per-entry ceiling.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		limit:   limit,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) MaxValueSize() int { return s.limit }

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || s.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if s.expired(e) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Write(_ context.Context, b Batch) error {
	if err := CheckBatch(b, s.limit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range b.Delete {
		delete(s.entries, k)
	}
	var expires time.Time
	if b.MaxAge > 0 {
		expires = s.now().Add(b.MaxAge)
	}
	for _, slot := range b.Set {
		s.entries[slot.Key] = memEntry{value: slot.Value, expires: expires}
	}
	return nil
}

func (s *MemoryStore) expired(e memEntry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}
