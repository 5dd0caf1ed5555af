package metrics

import (
	"testing"
	"time"
)

func TestMemoryObserverCounts(t *testing.T) {
	m := NewMemoryObserver()
	for i := 0; i < 3; i++ {
		m.RecordEvent(MetricsEvent{Name: "delivery", Time: time.Now()})
	}
	m.RecordEvent(MetricsEvent{Name: "cache_hit", Time: time.Now()})

	counts := m.CountByName()
	if counts["delivery"] != 3 || counts["cache_hit"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if got := len(m.Events()); got != 4 {
		t.Fatalf("expected 4 events, got %d", got)
	}
}

func TestAsyncObserverForwardsAndDrops(t *testing.T) {
	inner := NewMemoryObserver()
	a := NewAsyncObserver(inner, 1)

	a.RecordEvent(MetricsEvent{Name: "delivery", Time: time.Now()})
	deadline := time.After(time.Second)
	for len(inner.Events()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("event never forwarded")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	a.Close()
	a.RecordEvent(MetricsEvent{Name: "after_close", Time: time.Now()})
	if counts := inner.CountByName(); counts["after_close"] != 0 {
		t.Fatalf("closed observer must not forward")
	}
}
