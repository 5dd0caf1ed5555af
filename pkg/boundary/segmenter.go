package boundary

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/frames"
	"github.com/linguabridge/linguabridge/pkg/logging"
)

// ErrCaptureUnavailable is the terminal condition for an audio direction:
// the capture device is gone and the utterance sequence has ended.
var ErrCaptureUnavailable = errorsx.New(errorsx.ReasonCaptureUnavailable, "capture device unavailable")

// CaptureSource yields frames from a device or remote stream: audio to
// segment, text to pass through as typed utterances, control frames to
// flush or end the stream. ReadFrame blocks until the next frame,
// honoring ctx cancellation, and returns ErrCaptureUnavailable when the
// device is lost.
type CaptureSource interface {
	ReadFrame(ctx context.Context) (frames.Frame, error)
}

// Config tunes utterance segmentation.
type Config struct {
	RoomID        string
	ParticipantID string
	SourceLang    string
	SampleRate    int

	// SilenceRMS is the energy floor below which a frame counts as silence.
	SilenceRMS float64
	// MinSilence closes a segment once this much contiguous silence follows speech.
	MinSilence time.Duration
	// MaxChunk closes a segment regardless of silence, bounding latency.
	MaxChunk time.Duration
	// Buffer is the emitted-utterance channel capacity.
	Buffer int
	// NextSeq issues sequence numbers for emitted utterances; nil uses an
	// internal counter. Rooms supply this so counters survive reconnects.
	NextSeq func() uint64
}

// Segmenter turns a live audio stream and discrete text submissions into a
// lazy sequence of finalized utterances. The sequence is restartable per
// stream but not seekable; it ends for good on capture loss or Close.
type Segmenter struct {
	cfg    Config
	out    chan Utterance
	mu     sync.Mutex
	seq    uint64
	closed bool
	logger *slog.Logger
}

func NewSegmenter(cfg Config) *Segmenter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = 0.01
	}
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = 400 * time.Millisecond
	}
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = 3 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 8
	}
	return &Segmenter{
		cfg:    cfg,
		out:    make(chan Utterance, cfg.Buffer),
		logger: logging.NewComponentLogger(slog.Default(), "segmenter"),
	}
}

// Utterances is the finalized sequence. It is closed when capture ends.
func (s *Segmenter) Utterances() <-chan Utterance { return s.out }

// Close ends the sequence. Safe to call more than once.
func (s *Segmenter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// emit assigns the next sequence number and sends. A dropped utterance
// consumes no number, so downstream ordering never sees a gap from here.
func (s *Segmenter) emit(u Utterance, what string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	// emit is the only sender, so a capacity check under the lock
	// guarantees the send below cannot block.
	if len(s.out) == cap(s.out) {
		s.logger.Warn("utterance buffer full, dropping "+what,
			slog.String("participant_id", s.cfg.ParticipantID))
		return false
	}
	if s.cfg.NextSeq != nil {
		u.SequenceNo = s.cfg.NextSeq()
	} else {
		s.seq++
		u.SequenceNo = s.seq
	}
	s.out <- u
	return true
}

// submitText finalizes one typed utterance, discarding whitespace-only
// input. lang overrides the configured source language when set.
func (s *Segmenter) submitText(text, lang string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if lang == "" {
		lang = s.cfg.SourceLang
	}
	u := newUtterance(s.cfg.RoomID, s.cfg.ParticipantID, lang)
	u.Text = trimmed
	return s.emit(u, "text submission")
}

// Run consumes src until ctx is done or the device is lost, emitting one
// utterance per closed segment. A segment closes on a silence run after
// speech, or at the max chunk duration, whichever comes first. Segments
// that never contained speech are discarded, not emitted.
func (s *Segmenter) Run(ctx context.Context, src CaptureSource) error {
	defer s.Close()

	var (
		segment    []byte
		segmentDur time.Duration
		silenceRun time.Duration
		speech     bool
	)
	flush := func() {
		if speech && len(segment) > 0 {
			u := newUtterance(s.cfg.RoomID, s.cfg.ParticipantID, s.cfg.SourceLang)
			u.Audio = append([]byte(nil), segment...)
			u.SampleRate = s.cfg.SampleRate
			s.emit(u, "segment")
		}
		segment = segment[:0]
		segmentDur = 0
		silenceRun = 0
		speech = false
	}

	for {
		frame, err := src.ReadFrame(ctx)
		if err != nil {
			flush()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Error("capture ended",
				slog.String("participant_id", s.cfg.ParticipantID),
				slog.String("reason", string(errorsx.Reason(err))))
			return errorsx.Wrap(err, errorsx.ReasonCaptureUnavailable)
		}

		switch f := frame.(type) {
		case frames.AudioFrame:
			data := f.RawPayload()
			frameDur := pcmDuration(len(data), s.cfg.SampleRate)
			segment = append(segment, data...)
			segmentDur += frameDur

			if rms(data) < s.cfg.SilenceRMS {
				silenceRun += frameDur
			} else {
				silenceRun = 0
				speech = true
			}
			frames.ReleaseAudioFrame(f)

			if (speech && silenceRun >= s.cfg.MinSilence) || segmentDur >= s.cfg.MaxChunk {
				flush()
			}
		case frames.TextFrame:
			// Typed input bypasses segmentation but shares the stream's
			// ordering with spoken segments.
			s.submitText(f.Text(), f.Meta()[frames.MetaLanguage])
		case frames.ControlFrame:
			switch f.Code() {
			case frames.ControlFlush:
				flush()
			case frames.ControlCaptureLost:
				flush()
				s.logger.Error("capture ended",
					slog.String("participant_id", s.cfg.ParticipantID),
					slog.String("reason", f.Meta()[frames.MetaReason]))
				return ErrCaptureUnavailable
			}
		default:
			s.logger.Debug("ignoring frame",
				slog.String("kind", string(frame.Kind())))
		}
	}
}

// rms computes root-mean-square energy of little-endian PCM16, scaled to [0,1].
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		f := float64(v) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}

func pcmDuration(nbytes, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := nbytes / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
