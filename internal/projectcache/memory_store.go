package projectcache

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries for the life of the process.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore returns an empty store whose entries never expire.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, 0)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	value, ok := s.items.Get(key)
	if !ok {
		return "", false, nil
	}
	str, ok := value.(string)
	return str, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.items.Set(key, value, gocache.NoExpiration)
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.items.Delete(key)
	return nil
}

// Entries returns a copy of all stored entries.
func (s *MemoryStore) Entries() (map[string]string, error) {
	items := s.items.Items()
	entries := make(map[string]string, len(items))
	for key, item := range items {
		if value, ok := item.Object.(string); ok {
			entries[key] = value
		}
	}
	return entries, nil
}
