package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/linguabridge/linguabridge/pkg/adapters/transcribe"
	"github.com/linguabridge/linguabridge/pkg/boundary"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/logging"
	"github.com/linguabridge/linguabridge/pkg/relay"
	"github.com/linguabridge/linguabridge/pkg/session"
	"github.com/linguabridge/linguabridge/pkg/translation"
)

// DefaultMaxInFlight bounds how many utterances of one direction are
// processed concurrently.
const DefaultMaxInFlight = 3

// Config tunes one direction of a room.
type Config struct {
	MaxInFlight int
}

// Direction processes one speaker's finalized utterances: transcription
// for audio, translation toward the peer's language, then relay. Up to
// MaxInFlight utterances are in flight at once; the relay restores
// sequence order on delivery, so slow translations never reorder output.
type Direction struct {
	room     *session.Room
	speaker  session.Participant
	stt      transcribe.Transcriber
	resolver *translation.Resolver
	relay    *relay.Relay
	limit    int
	logger   *slog.Logger
}

func NewDirection(room *session.Room, speakerID string, stt transcribe.Transcriber, resolver *translation.Resolver, rel *relay.Relay, cfg Config) (*Direction, error) {
	speaker, ok := room.Participant(speakerID)
	if !ok {
		return nil, errorsx.New(errorsx.ReasonSessionClosed, "participant "+speakerID+" not in room "+room.ID)
	}
	limit := cfg.MaxInFlight
	if limit <= 0 {
		limit = DefaultMaxInFlight
	}
	return &Direction{
		room:     room,
		speaker:  speaker,
		stt:      stt,
		resolver: resolver,
		relay:    rel,
		limit:    limit,
		logger: logging.NewComponentLogger(slog.Default(), "pipeline").With(
			slog.String("room_id", room.ID),
			slog.String("speaker_id", speakerID)),
	}, nil
}

// Run consumes utterances until the channel closes or ctx is cancelled.
// A failed utterance is reported to the speaker and never stops the
// direction; Run only returns the ctx error or nil on channel close.
func (d *Direction) Run(ctx context.Context, utterances <-chan boundary.Utterance) error {
	var g errgroup.Group
	g.SetLimit(d.limit)
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case u, ok := <-utterances:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				d.process(ctx, u)
				return nil
			})
		}
	}
}

func (d *Direction) process(ctx context.Context, u boundary.Utterance) {
	text := u.Text
	sourceLang := u.SourceLang

	if !u.IsText() {
		res, err := d.stt.Transcribe(ctx, u.Audio, u.SampleRate, sourceLang)
		if err != nil {
			reason := errorsx.Reason(err)
			if reason == errorsx.ReasonUnknown {
				reason = errorsx.ReasonTranscriptionFailed
			}
			d.logger.Warn("transcription failed",
				slog.Uint64("sequence", u.SequenceNo),
				slog.String("reason", string(reason)))
			d.relay.Abort(ctx, d.room, d.speaker.ID, u.SequenceNo,
				reason, "could not transcribe utterance")
			return
		}
		text = res.Text
		if res.DetectedLang != "" {
			sourceLang = res.DetectedLang
		}
	}

	// Nothing intelligible in the segment; advance ordering quietly.
	if strings.TrimSpace(text) == "" {
		d.relay.Skip(ctx, d.room, d.speaker.ID, u.SequenceNo)
		return
	}

	peer, ok := d.room.Peer(d.speaker.ID)
	if !ok {
		d.relay.Abort(ctx, d.room, d.speaker.ID, u.SequenceNo,
			errorsx.ReasonSessionClosed, "peer is no longer in the room")
		return
	}

	translated, resolvedLang, err := d.resolver.Translate(ctx, text, sourceLang, peer.Language)
	if err != nil {
		reason := errorsx.Reason(err)
		if reason == errorsx.ReasonUnknown {
			reason = errorsx.ReasonTranslationFailed
		}
		d.logger.Warn("translation failed",
			slog.Uint64("sequence", u.SequenceNo),
			slog.String("reason", string(reason)))
		d.relay.Abort(ctx, d.room, d.speaker.ID, u.SequenceNo, reason, "could not translate utterance")
		return
	}

	if err := d.relay.Deliver(ctx, d.room, d.speaker.ID, text, translated, u.SequenceNo); err != nil {
		d.logger.Warn("delivery rejected",
			slog.Uint64("sequence", u.SequenceNo),
			slog.String("reason", string(errorsx.Reason(err))))
		return
	}
	d.logger.Debug("utterance relayed",
		slog.Uint64("sequence", u.SequenceNo),
		slog.String("source_lang", resolvedLang),
		slog.String("target_lang", peer.Language))
}
