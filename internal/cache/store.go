package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is one cached weather payload. Entries are immutable; a refresh
// replaces the whole entry instead of mutating it in place.
type Entry struct {
	Payload   string
	FetchedAt time.Time
}

// Expired reports whether the entry is older than ttl at the given instant.
func (e Entry) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.FetchedAt) > ttl
}

// Store is a concurrency-safe, bounded key/value store with least-recently-used
// eviction. Recency order is kept in a doubly-linked list; the front of the
// list is the most recently accessed key. The store never performs I/O.
type Store struct {
	mu sync.RWMutex

	maxSize int
	order   *list.List // of *node, front = most recently used
	index   map[string]*list.Element
}

type node struct {
	key   string
	entry Entry
}

// New creates a Store bounded to maxSize entries. maxSize must be positive;
// the caller validates configuration before construction.
func New(maxSize int) *Store {
	return &Store{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// Get returns the entry for key, if present. The lookup runs under the read
// lock so probes proceed concurrently; the recency promotion happens in a
// second, short exclusive section.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	el, ok := s.index[key]
	var entry Entry
	if ok {
		entry = el.Value.(*node).entry
	}
	s.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}

	s.mu.Lock()
	// Re-check: the key may have been removed between the two sections.
	if el, ok := s.index[key]; ok {
		s.order.MoveToFront(el)
	}
	s.mu.Unlock()

	return entry, true
}

// Put inserts or replaces the entry for key. When the insert pushes the store
// over its bound, the least-recently-used entry is evicted.
func (s *Store) Put(key, payload string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{Payload: payload, FetchedAt: now}

	if el, ok := s.index[key]; ok {
		el.Value.(*node).entry = entry
		s.order.MoveToFront(el)
		return
	}

	s.index[key] = s.order.PushFront(&node{key: key, entry: entry})

	if s.order.Len() > s.maxSize {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.index, oldest.Value.(*node).key)
		}
	}
}

// Remove deletes the entry for key if present.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[key]; ok {
		s.order.Remove(el)
		delete(s.index, key)
	}
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Init()
	s.index = make(map[string]*list.Element)
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.index)
}

// Keys returns a snapshot of all cached keys, most recently used first.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*node).key)
	}
	return keys
}
