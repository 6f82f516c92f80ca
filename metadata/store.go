package metadata

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates the requested client is not part of the current snapshot
	ErrNotFound = errors.New("the requested client was not found")
)

// Entry is metadata coupled with the time it was last updated.
// An Entry never shares state with the store it was read from.
type Entry struct {
	Metadata     map[string]any
	LastModified time.Time
}

// Store is a concurrency safe holder of the current client metadata mapping.
type Store struct {
	mutex        sync.RWMutex
	data         map[string]any
	lastModified time.Time
	now          func() time.Time
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{
		data: make(map[string]any),
		now:  time.Now,
	}
}

// Update replaces the whole mapping and the last modified timestamp in one step.
func (s *Store) Update(metadata map[string]any) {
	data := copyMap(metadata)
	if data == nil {
		data = make(map[string]any)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = data
	s.lastModified = s.now().UTC()
}

// Get returns the metadata of a single client
func (s *Store) Get(clientID string) (Entry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.data[clientID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	md, ok := v.(map[string]any)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Metadata: copyMap(md), LastModified: s.lastModified}, nil
}

// All returns a copy of all known client metadata
func (s *Store) All() Entry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return Entry{Metadata: copyMap(s.data), LastModified: s.lastModified}
}

// Len is the number of clients currently known
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

// LastModified is the time of the last update, zero if the store was never updated
func (s *Store) LastModified() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastModified
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[fmt.Sprint(k)] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
