package boundary

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Utterance is one finalized translatable unit. Immutable once emitted;
// ownership passes stage to stage down the pipeline.
type Utterance struct {
	ID            string
	RoomID        string
	ParticipantID string
	SourceLang    string

	// Audio holds PCM16 samples for spoken utterances; Text is set for
	// typed submissions. Exactly one of the two is populated.
	Audio      []byte
	Text       string
	SampleRate int

	SequenceNo uint64
	CreatedAt  time.Time
}

// IsText reports whether the utterance came from a text submission.
func (u Utterance) IsText() bool { return u.Audio == nil }

func newUtterance(roomID, participantID, lang string) Utterance {
	return Utterance{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		ParticipantID: participantID,
		SourceLang:    strings.ToLower(strings.TrimSpace(lang)),
		CreatedAt:     time.Now(),
	}
}
