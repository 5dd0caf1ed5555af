package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/relay"
	"github.com/linguabridge/linguabridge/pkg/session"
	"github.com/linguabridge/linguabridge/pkg/transports"
)

// Transport is an in-memory transport for local runs and integration
// tests. Each Connect yields a Conn that behaves like one remote
// participant: envelopes out, deliveries in, no network anywhere.
type Transport struct {
	handler transports.Handler
	mu      sync.Mutex
	conns   []*Conn
	closed  atomic.Bool
}

func New(h transports.Handler) *Transport {
	return &Transport{handler: h}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	conns := append([]*Conn(nil), t.conns...)
	t.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	return nil
}

// Connect joins roomID as p and returns the participant's connection.
func (t *Transport) Connect(ctx context.Context, roomID string, p session.Participant, buffer int) (*Conn, session.State, error) {
	if buffer <= 0 {
		buffer = 64
	}
	c := &Conn{
		transport:     t,
		roomID:        roomID,
		participantID: p.ID,
		inbox:         make(chan transports.Envelope, buffer),
	}
	state, err := t.handler.Join(ctx, roomID, p, c)
	if err != nil {
		return nil, state, err
	}
	t.mu.Lock()
	t.conns = append(t.conns, c)
	t.mu.Unlock()
	return c, state, nil
}

// Conn is one participant's in-memory connection.
type Conn struct {
	transport     *Transport
	roomID        string
	participantID string
	inbox         chan transports.Envelope
	closed        atomic.Bool
	closeOnce     sync.Once
}

func (c *Conn) ParticipantID() string { return c.participantID }

// Inbox carries deliveries, echoes and failure notices for this participant.
func (c *Conn) Inbox() <-chan transports.Envelope { return c.inbox }

func (c *Conn) SubmitText(ctx context.Context, text string) error {
	return c.transport.handler.SubmitText(ctx, c.roomID, c.participantID, text)
}

func (c *Conn) SubmitAudio(ctx context.Context, audio []byte, sampleRate int) error {
	return c.transport.handler.SubmitAudio(ctx, c.roomID, c.participantID, audio, sampleRate)
}

func (c *Conn) Heartbeat() {
	c.transport.handler.Heartbeat(c.roomID, c.participantID)
}

// Drop simulates a transient disconnect: the sink detaches but the room
// stays open.
func (c *Conn) Drop() {
	c.transport.handler.Detach(c.roomID, c.participantID)
}

// Leave closes the participant's side for good.
func (c *Conn) Leave() error {
	err := c.transport.handler.Leave(c.roomID, c.participantID)
	c.close()
	return err
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.inbox)
	})
}

func (c *Conn) push(env transports.Envelope) error {
	if c.closed.Load() {
		return errorsx.New(errorsx.ReasonTransportSend, "connection closed")
	}
	select {
	case c.inbox <- env:
	default:
	}
	return nil
}

func (c *Conn) Speak(_ context.Context, d relay.Delivery) error {
	return c.push(transports.Envelope{
		Type:          transports.TypeDelivery,
		RoomID:        d.RoomID,
		SpeakerID:     d.SpeakerID,
		ParticipantID: d.RecipientID,
		Translated:    d.Translated,
		TargetLang:    d.TargetLang,
		SequenceNo:    d.SequenceNo,
		Audio:         d.Audio,
		SampleRate:    d.SampleRate,
		TextOnly:      d.TextOnly,
	})
}

func (c *Conn) Echo(_ context.Context, e relay.Echo) error {
	return c.push(transports.Envelope{
		Type:       transports.TypeEcho,
		RoomID:     e.RoomID,
		SpeakerID:  e.SpeakerID,
		Original:   e.Original,
		Translated: e.Translated,
		SequenceNo: e.SequenceNo,
	})
}

func (c *Conn) Fail(_ context.Context, f relay.Failure) error {
	return c.push(transports.Envelope{
		Type:       transports.TypeError,
		RoomID:     f.RoomID,
		SpeakerID:  f.SpeakerID,
		SequenceNo: f.SequenceNo,
		Reason:     string(f.Reason),
		Message:    f.Message,
	})
}

var (
	_ transports.Transport = (*Transport)(nil)
	_ relay.Sink           = (*Conn)(nil)
)
