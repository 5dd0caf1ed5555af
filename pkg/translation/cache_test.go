package translation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyNormalizationDeterministic(t *testing.T) {
	a := NewKey("  Hello, how are you?  ", "EN", "hi")
	b := NewKey("hello how are you", "en", "HI")
	if a != b {
		t.Fatalf("expected normalized keys to match: %+v vs %+v", a, b)
	}
	c := NewKey("hello how are you tonight", "en", "hi")
	if a == c {
		t.Fatalf("different text should not collide")
	}
}

func TestResolveCachesAndCountsHits(t *testing.T) {
	c := NewCache(nil)
	var calls atomic.Int64
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		return "नमस्ते", nil
	}
	key := NewKey("Hello", "en", "hi")

	first, err := c.Resolve(context.Background(), key, compute)
	if err != nil || first != "नमस्ते" {
		t.Fatalf("first resolve: %q %v", first, err)
	}
	second, err := c.Resolve(context.Background(), key, compute)
	if err != nil || second != "नमस्ते" {
		t.Fatalf("second resolve: %q %v", second, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", calls.Load())
	}
	st := c.Stats()
	if st.Size != 1 || st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestResolveSingleFlight(t *testing.T) {
	c := NewCache(nil)
	var calls atomic.Int64
	gate := make(chan struct{})
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-gate
		return "done", nil
	}
	key := NewKey("same phrase", "en", "ta")

	const waiters = 16
	var wg sync.WaitGroup
	results := make([]string, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Resolve(context.Background(), key, compute)
		}(i)
	}
	// Let every waiter join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call for %d concurrent callers, got %d", waiters, calls.Load())
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil || results[i] != "done" {
			t.Fatalf("waiter %d: %q %v", i, results[i], errs[i])
		}
	}
}

func TestResolveFailureNotCached(t *testing.T) {
	c := NewCache(nil)
	var calls atomic.Int64
	boom := errors.New("upstream down")
	key := NewKey("fails once", "en", "kn")

	_, err := c.Resolve(context.Background(), key, func(context.Context) (string, error) {
		calls.Add(1)
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected failure propagated, got %v", err)
	}
	if c.Stats().Size != 0 {
		t.Fatalf("failed compute must not be cached")
	}

	got, err := c.Resolve(context.Background(), key, func(context.Context) (string, error) {
		calls.Add(1)
		return "recovered", nil
	})
	if err != nil || got != "recovered" {
		t.Fatalf("retry after failure: %q %v", got, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry to reach upstream, calls=%d", calls.Load())
	}
}

func TestResolveWaiterCancellation(t *testing.T) {
	c := NewCache(nil)
	gate := make(chan struct{})
	defer close(gate)
	key := NewKey("slow", "en", "te")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Resolve(ctx, key, func(context.Context) (string, error) {
		<-gate
		return "late", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestFlightSurvivesLeaderCancellation(t *testing.T) {
	c := NewCache(nil)
	started := make(chan struct{})
	gate := make(chan struct{})
	key := NewKey("Hello", "en", "hi")
	compute := func(ctx context.Context) (string, error) {
		close(started)
		<-gate
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "नमस्ते", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Resolve(leaderCtx, key, compute)
		leaderErr <- err
	}()
	<-started

	// A second caller joins the in-progress flight.
	waiterRes := make(chan string, 1)
	waiterErr := make(chan error, 1)
	go func() {
		got, err := c.Resolve(context.Background(), key, compute)
		waiterRes <- got
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	// Leader's session closes mid-flight; only its own wait is abandoned.
	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader should see its own cancellation, got %v", err)
	}

	close(gate)
	if err := <-waiterErr; err != nil {
		t.Fatalf("waiter must not inherit the leader's cancellation: %v", err)
	}
	if got := <-waiterRes; got != "नमस्ते" {
		t.Fatalf("waiter result: %q", got)
	}
	if c.Stats().Size != 1 {
		t.Fatalf("completed flight must populate the store")
	}
}

func TestLRUStoreEvicts(t *testing.T) {
	store, err := NewLRUStore(2)
	if err != nil {
		t.Fatalf("new lru store: %v", err)
	}
	c := NewCache(store)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		text := text
		if _, err := c.Resolve(ctx, NewKey(text, "en", "hi"), func(context.Context) (string, error) {
			return text + "!", nil
		}); err != nil {
			t.Fatalf("resolve %s: %v", text, err)
		}
	}
	st := c.Stats()
	if st.Size != 2 {
		t.Fatalf("expected capacity bound of 2, size=%d", st.Size)
	}
	if st.Evictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", st.Evictions)
	}
}
