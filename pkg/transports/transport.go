package transports

import (
	"context"

	"github.com/linguabridge/linguabridge/pkg/relay"
	"github.com/linguabridge/linguabridge/pkg/session"
)

// Transport is a vendor-agnostic participant-facing boundary.
// Implementations own their network lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Handler is the engine surface a transport drives. Join attaches the
// participant's sink; a nil sink joins without attaching one.
type Handler interface {
	Join(ctx context.Context, roomID string, p session.Participant, sink relay.Sink) (session.State, error)
	Leave(roomID, participantID string) error
	Detach(roomID, participantID string)
	Heartbeat(roomID, participantID string)
	SubmitText(ctx context.Context, roomID, participantID, text string) error
	SubmitAudio(ctx context.Context, roomID, participantID string, audio []byte, sampleRate int) error
}

// Envelope message types.
const (
	TypeJoin      = "join"
	TypeJoined    = "joined"
	TypeUtterance = "utterance"
	TypeDelivery  = "delivery"
	TypeEcho      = "echo"
	TypeError     = "error"
	TypeHeartbeat = "heartbeat"
	TypeLeave     = "leave"
)

// Envelope is the wire message shared by all transports. Audio is PCM16
// little-endian, base64 on the wire.
type Envelope struct {
	Type string `json:"type"`

	RoomID        string `json:"room_id,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Language      string `json:"language,omitempty"`
	State         string `json:"state,omitempty"`

	Text       string `json:"text,omitempty"`
	Audio      []byte `json:"audio,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`

	SpeakerID  string `json:"speaker_id,omitempty"`
	Original   string `json:"original,omitempty"`
	Translated string `json:"translated,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
	SequenceNo uint64 `json:"sequence_no,omitempty"`
	TextOnly   bool   `json:"text_only,omitempty"`

	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}
