package metrics

import "time"

// MetricsEvent is one engine occurrence: a delivery, a cache hit, a
// dropped utterance. Tags carry room and participant identifiers.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
