package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Participant is one side of a room.
type Participant struct {
	ID          string
	DisplayName string
	Language    string
	RoomID      string
	JoinedAt    time.Time
}

// NewParticipant fills defaults: a uuid when no id was supplied and a
// lowercased language code.
func NewParticipant(id, displayName, language string) Participant {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	return Participant{
		ID:          id,
		DisplayName: displayName,
		Language:    strings.ToLower(strings.TrimSpace(language)),
		JoinedAt:    time.Now(),
	}
}

// Exchange is one translated utterance recorded in room history.
type Exchange struct {
	SpeakerID  string
	Original   string
	Translated string
	TargetLang string
	SequenceNo uint64
	At         time.Time
}
