package translation

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is one memoized translation.
type Entry struct {
	Key       Key
	Text      string
	CreatedAt time.Time

	hits atomic.Int64
}

// Hits returns how many times this entry served a lookup.
func (e *Entry) Hits() int64 { return e.hits.Load() }

// Store is the pluggable eviction policy behind the cache. Implementations
// must be safe for concurrent use. Entries only appear here after their
// translation completed, so eviction never touches an in-flight key.
type Store interface {
	Get(Key) (*Entry, bool)
	Add(Key, *Entry)
	Len() int
}

// Evicted is implemented by bounded stores that count discarded entries.
type Evicted interface {
	Evictions() int64
}

type mapStore struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
}

// NewUnboundedStore keeps every entry for the process lifetime. Fine for
// short sessions; long-running deployments should prefer NewLRUStore.
func NewUnboundedStore() Store {
	return &mapStore{entries: make(map[Key]*Entry)}
}

func (s *mapStore) Get(k Key) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[k]
	return e, ok
}

func (s *mapStore) Add(k Key, e *Entry) {
	s.mu.Lock()
	s.entries[k] = e
	s.mu.Unlock()
}

func (s *mapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type lruStore struct {
	inner     *lru.Cache[Key, *Entry]
	evictions atomic.Int64
}

// NewLRUStore bounds the cache to capacity entries with least-recently-used
// eviction.
func NewLRUStore(capacity int) (Store, error) {
	s := &lruStore{}
	inner, err := lru.NewWithEvict[Key, *Entry](capacity, func(Key, *Entry) {
		s.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	s.inner = inner
	return s, nil
}

func (s *lruStore) Get(k Key) (*Entry, bool) { return s.inner.Get(k) }

func (s *lruStore) Add(k Key, e *Entry) { s.inner.Add(k, e) }

func (s *lruStore) Len() int { return s.inner.Len() }

func (s *lruStore) Evictions() int64 { return s.evictions.Load() }
