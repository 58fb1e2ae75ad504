package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/blockcache/blockcache/pkg/types"
)

// Entry is a pool's cached volume together with the time it was last refreshed.
// UpdatedAt is zero until the first successful refresh.
type Entry struct {
	Key       string    `json:"pool_address"`
	Volume    float64   `json:"volume"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a thread-safe fixed-registry volume map.
type Store struct {
	mu    sync.RWMutex
	data  map[string]*Entry
	order []string
	now   func() time.Time // injectable for deterministic tests
}

// New registers keys with a volume of 0. Duplicate keys collapse into one entry.
func New(keys []string) *Store {
	s := &Store{
		data: make(map[string]*Entry, len(keys)),
		now:  time.Now,
	}
	for _, k := range keys {
		if _, dup := s.data[k]; dup {
			continue
		}
		s.data[k] = &Entry{Key: k}
		s.order = append(s.order, k)
	}
	return s
}

// Get returns a copy of the entry for key, or types.ErrNotFound if key was
// never registered.
func (s *Store) Get(key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", types.ErrNotFound, key)
	}
	return *e, nil
}

// Set overwrites the volume for key. The write lock covers this one entry only.
func (s *Store) Set(key string, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNotFound, key)
	}
	e.Volume = volume
	e.UpdatedAt = s.now()
	return nil
}

// Keys returns the registered keys in registration order.
func (s *Store) Keys() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of registered keys.
func (s *Store) Len() int {
	return len(s.order)
}

// Snapshot returns copies of every entry in registration order.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.data[k])
	}
	return out
}
