package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linguabridge/linguabridge/pkg/adapters/transcribe"
	"github.com/linguabridge/linguabridge/pkg/boundary"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/relay"
	"github.com/linguabridge/linguabridge/pkg/session"
	"github.com/linguabridge/linguabridge/pkg/translation"
)

type captureSink struct {
	mu     sync.Mutex
	spoken []relay.Delivery
	failed []relay.Failure
}

func (c *captureSink) Speak(_ context.Context, d relay.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spoken = append(c.spoken, d)
	return nil
}

func (c *captureSink) Echo(_ context.Context, _ relay.Echo) error { return nil }

func (c *captureSink) Fail(_ context.Context, f relay.Failure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, f)
	return nil
}

func (c *captureSink) deliveries() []relay.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]relay.Delivery(nil), c.spoken...)
}

func (c *captureSink) failures() []relay.Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]relay.Failure(nil), c.failed...)
}

type upperTranslator struct {
	calls   atomic.Int64
	active  atomic.Int64
	peak    atomic.Int64
	delay   time.Duration
	failOn  string
	release chan struct{}
}

func (t *upperTranslator) Name() string { return "upper" }

func (t *upperTranslator) Translate(_ context.Context, text, _, target string) (string, error) {
	t.calls.Add(1)
	n := t.active.Add(1)
	defer t.active.Add(-1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if t.release != nil {
		<-t.release
	}
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	if t.failOn != "" && text == t.failOn {
		return "", errors.New("vendor rejected text")
	}
	return strings.ToUpper(text) + " [" + target + "]", nil
}

type echoTranscriber struct {
	text string
	err  error
}

func (e *echoTranscriber) Name() string { return "echo" }

func (e *echoTranscriber) Transcribe(_ context.Context, _ []byte, _ int, _ string) (transcribe.Result, error) {
	if e.err != nil {
		return transcribe.Result{}, e.err
	}
	return transcribe.Result{Text: e.text}, nil
}

func activeRoom(t *testing.T) (*session.Registry, *session.Room) {
	t.Helper()
	reg := session.NewRegistry(session.RegistryConfig{})
	if _, _, err := reg.Join("ABC123", session.NewParticipant("alice", "Alice", "en")); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	room, _, err := reg.Join("ABC123", session.NewParticipant("raj", "Raj", "hi"))
	if err != nil {
		t.Fatalf("raj join: %v", err)
	}
	return reg, room
}

func newResolver(port *upperTranslator) *translation.Resolver {
	return translation.NewResolver(translation.NewCache(translation.NewUnboundedStore()), port, translation.ResolverConfig{DefaultLang: "en"})
}

func textUtterance(seq uint64, text string) boundary.Utterance {
	return boundary.Utterance{
		ID:            fmt.Sprintf("u-%d", seq),
		RoomID:        "ABC123",
		ParticipantID: "alice",
		SourceLang:    "en",
		Text:          text,
		SequenceNo:    seq,
		CreatedAt:     time.Now(),
	}
}

func runDirection(t *testing.T, d *Direction, utterances []boundary.Utterance) {
	t.Helper()
	in := make(chan boundary.Utterance, len(utterances))
	for _, u := range utterances {
		in <- u
	}
	close(in)
	if err := d.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestDirectionDeliversInSequenceOrder(t *testing.T) {
	_, room := activeRoom(t)
	rel := relay.New(0)
	peerSink := &captureSink{}
	rel.AttachSink(context.Background(), "ABC123", "raj", peerSink)

	port := &upperTranslator{}
	d, err := NewDirection(room, "alice", &echoTranscriber{}, newResolver(port), rel, Config{})
	if err != nil {
		t.Fatalf("new direction: %v", err)
	}

	runDirection(t, d, []boundary.Utterance{
		textUtterance(1, "hello"),
		textUtterance(2, "how are you"),
		textUtterance(3, "goodbye"),
	})

	got := peerSink.deliveries()
	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(got))
	}
	for i, dlv := range got {
		if dlv.SequenceNo != uint64(i+1) {
			t.Fatalf("delivery %d out of order: sequence %d", i, dlv.SequenceNo)
		}
		if dlv.RecipientID != "raj" || dlv.TargetLang != "hi" {
			t.Fatalf("unexpected recipient: %+v", dlv)
		}
	}
	if got[0].Translated != "HELLO [hi]" {
		t.Fatalf("unexpected translation %q", got[0].Translated)
	}
	if len(room.History()) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(room.History()))
	}
}

func TestDirectionBoundsInFlightWork(t *testing.T) {
	_, room := activeRoom(t)
	rel := relay.New(0)
	rel.AttachSink(context.Background(), "ABC123", "raj", &captureSink{})

	port := &upperTranslator{release: make(chan struct{})}
	d, err := NewDirection(room, "alice", &echoTranscriber{}, newResolver(port), rel, Config{MaxInFlight: 2})
	if err != nil {
		t.Fatalf("new direction: %v", err)
	}

	var utterances []boundary.Utterance
	for i := 1; i <= 6; i++ {
		utterances = append(utterances, textUtterance(uint64(i), fmt.Sprintf("line %d", i)))
	}

	done := make(chan struct{})
	in := make(chan boundary.Utterance, len(utterances))
	for _, u := range utterances {
		in <- u
	}
	close(in)
	go func() {
		defer close(done)
		_ = d.Run(context.Background(), in)
	}()

	// Let the first workers park on the gate, then open it.
	time.Sleep(50 * time.Millisecond)
	close(port.release)
	<-done

	if peak := port.peak.Load(); peak > 2 {
		t.Fatalf("in-flight bound violated: peak %d", peak)
	}
	if calls := port.calls.Load(); calls != 6 {
		t.Fatalf("expected 6 translations, got %d", calls)
	}
}

func TestDirectionIsolatesFailures(t *testing.T) {
	_, room := activeRoom(t)
	rel := relay.New(0)
	peerSink := &captureSink{}
	speakerSink := &captureSink{}
	rel.AttachSink(context.Background(), "ABC123", "raj", peerSink)
	rel.AttachSink(context.Background(), "ABC123", "alice", speakerSink)

	port := &upperTranslator{failOn: "broken"}
	d, err := NewDirection(room, "alice", &echoTranscriber{}, newResolver(port), rel, Config{})
	if err != nil {
		t.Fatalf("new direction: %v", err)
	}

	runDirection(t, d, []boundary.Utterance{
		textUtterance(1, "first"),
		textUtterance(2, "broken"),
		textUtterance(3, "third"),
	})

	got := peerSink.deliveries()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0].SequenceNo != 1 || got[1].SequenceNo != 3 {
		t.Fatalf("expected sequences 1 and 3, got %d and %d", got[0].SequenceNo, got[1].SequenceNo)
	}
	fails := speakerSink.failures()
	if len(fails) != 1 {
		t.Fatalf("expected 1 failure notice, got %d", len(fails))
	}
	if fails[0].SequenceNo != 2 || fails[0].Reason != errorsx.ReasonTranslationFailed {
		t.Fatalf("unexpected failure: %+v", fails[0])
	}
	if len(peerSink.failures()) != 0 {
		t.Fatalf("peer must not see speaker failures")
	}
}

func TestDirectionSkipsEmptyTranscription(t *testing.T) {
	_, room := activeRoom(t)
	rel := relay.New(0)
	peerSink := &captureSink{}
	speakerSink := &captureSink{}
	rel.AttachSink(context.Background(), "ABC123", "raj", peerSink)
	rel.AttachSink(context.Background(), "ABC123", "alice", speakerSink)

	port := &upperTranslator{}
	d, err := NewDirection(room, "alice", &echoTranscriber{text: "   "}, newResolver(port), rel, Config{})
	if err != nil {
		t.Fatalf("new direction: %v", err)
	}

	audio := boundary.Utterance{
		RoomID:        "ABC123",
		ParticipantID: "alice",
		SourceLang:    "en",
		Audio:         make([]byte, 320),
		SampleRate:    16000,
		SequenceNo:    1,
	}
	runDirection(t, d, []boundary.Utterance{audio, textUtterance(2, "after the pause")})

	got := peerSink.deliveries()
	if len(got) != 1 || got[0].SequenceNo != 2 {
		t.Fatalf("expected only sequence 2 delivered, got %+v", got)
	}
	if len(speakerSink.failures()) != 0 {
		t.Fatalf("empty transcription must not notify the speaker")
	}
	if calls := port.calls.Load(); calls != 1 {
		t.Fatalf("expected 1 translation, got %d", calls)
	}
}

func TestDirectionReportsTranscriptionFailure(t *testing.T) {
	_, room := activeRoom(t)
	rel := relay.New(0)
	speakerSink := &captureSink{}
	rel.AttachSink(context.Background(), "ABC123", "alice", speakerSink)
	rel.AttachSink(context.Background(), "ABC123", "raj", &captureSink{})

	d, err := NewDirection(room, "alice", &echoTranscriber{err: errors.New("vendor 500")}, newResolver(&upperTranslator{}), rel, Config{})
	if err != nil {
		t.Fatalf("new direction: %v", err)
	}

	audio := boundary.Utterance{
		RoomID:        "ABC123",
		ParticipantID: "alice",
		SourceLang:    "en",
		Audio:         make([]byte, 320),
		SampleRate:    16000,
		SequenceNo:    1,
	}
	runDirection(t, d, []boundary.Utterance{audio})

	fails := speakerSink.failures()
	if len(fails) != 1 || fails[0].Reason != errorsx.ReasonTranscriptionFailed {
		t.Fatalf("expected transcription failure notice, got %+v", fails)
	}
}
