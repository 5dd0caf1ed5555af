package translation

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/linguabridge/linguabridge/pkg/metrics"
)

// ComputeFunc produces the translation for a missing key.
type ComputeFunc func(ctx context.Context) (string, error)

// Cache memoizes translations per key and collapses concurrent misses for
// the same key into a single upstream call. A failed compute is propagated
// to every waiter for that key and is not cached, so the next call retries.
type Cache struct {
	store  Store
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
	obs    metrics.Observer
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewCache builds a cache over the given store; nil means unbounded.
func NewCache(store Store) *Cache {
	if store == nil {
		store = NewUnboundedStore()
	}
	return &Cache{store: store, obs: metrics.NoopObserver{}}
}

func (c *Cache) SetObserver(obs metrics.Observer) {
	if obs != nil {
		c.obs = obs
	}
}

// Resolve returns the memoized translation for key, or runs compute at most
// once across all concurrent callers of the same key. The caller's ctx only
// abandons its own wait; the flight keeps running for other waiters.
func (c *Cache) Resolve(ctx context.Context, key Key, compute ComputeFunc) (string, error) {
	if e, ok := c.store.Get(key); ok {
		e.hits.Add(1)
		c.hits.Add(1)
		c.record("cache_hit", key)
		return e.Text, nil
	}
	c.misses.Add(1)
	c.record("cache_miss", key)

	// The flight outlives the caller that started it: waiters from other
	// sessions must not lose their translation because the leader's ctx
	// was cancelled mid-compute.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		// A completed flight may have populated the store after our miss.
		if e, ok := c.store.Get(key); ok {
			e.hits.Add(1)
			c.hits.Add(1)
			return e.Text, nil
		}
		text, err := compute(flightCtx)
		if err != nil {
			return "", err
		}
		c.store.Add(key, &Entry{Key: key, Text: text, CreatedAt: time.Now()})
		return text, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Cache) Stats() Stats {
	st := Stats{
		Size:   c.store.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if ev, ok := c.store.(Evicted); ok {
		st.Evictions = ev.Evictions()
	}
	return st
}

func (c *Cache) record(name string, key Key) {
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{
			"source": key.Source,
			"target": key.Target,
		},
	})
}
