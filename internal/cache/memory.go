package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// MemoryStore keeps replies in process memory. It is the fallback when no
// Redis address is configured and the backend for tests.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

func NewMemoryStore(config MemoryConfig) *MemoryStore {
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 2000
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (s *MemoryStore) Get(_ context.Context, signature string) (Entry, bool, error) {
	s.mu.RLock()
	stored, exists := s.entries[signature]
	s.mu.RUnlock()

	if !exists {
		return Entry{}, false, nil
	}
	if time.Now().UTC().After(stored.expiresAt) {
		s.mu.Lock()
		delete(s.entries, signature)
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	return cloneEntry(stored.entry), true, nil
}

func (s *MemoryStore) Set(_ context.Context, signature string, entry Entry) error {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.Value = append([]byte(nil), entry.Value...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[signature] = memoryEntry{entry: entry, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) evictOldest() {
	if len(s.entries) == 0 {
		return
	}

	type pair struct {
		key   string
		value memoryEntry
	}
	pairs := make([]pair, 0, len(s.entries))
	for key, value := range s.entries {
		pairs = append(pairs, pair{key: key, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value.entry.CreatedAt.Before(pairs[j].value.entry.CreatedAt)
	})
	delete(s.entries, pairs[0].key)
}

func cloneEntry(entry Entry) Entry {
	clone := entry
	clone.Value = append([]byte(nil), entry.Value...)
	return clone
}
