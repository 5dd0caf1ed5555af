package relay

import (
	"context"

	"github.com/linguabridge/linguabridge/pkg/errorsx"
)

// Delivery is what the peer of a speaker receives: the translation in the
// peer's language, synthesized when the peer's voice supports it.
type Delivery struct {
	RoomID      string
	SpeakerID   string
	RecipientID string
	Translated  string
	TargetLang  string
	SequenceNo  uint64

	// Audio is nil when TextOnly is set.
	Audio      []byte
	SampleRate int
	TextOnly   bool
}

// Echo is what the speaker receives about their own utterance: text for
// display, never audio.
type Echo struct {
	RoomID     string
	SpeakerID  string
	Original   string
	Translated string
	SequenceNo uint64
}

// Failure notifies the speaker that one of their utterances was dropped.
// The peer is never told about the speaker's local failures.
type Failure struct {
	RoomID     string
	SpeakerID  string
	SequenceNo uint64
	Reason     errorsx.ReasonCode
	Message    string
}

// Sink is a participant's delivery target, typically one transport
// connection. Implementations must tolerate concurrent calls.
type Sink interface {
	Speak(ctx context.Context, d Delivery) error
	Echo(ctx context.Context, e Echo) error
	Fail(ctx context.Context, f Failure) error
}
