package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/linguabridge/linguabridge/pkg/adapters/synth"
	"github.com/linguabridge/linguabridge/pkg/adapters/transcribe"
	"github.com/linguabridge/linguabridge/pkg/adapters/translate"
	"github.com/linguabridge/linguabridge/pkg/boundary"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/frames"
	"github.com/linguabridge/linguabridge/pkg/logging"
	"github.com/linguabridge/linguabridge/pkg/metrics"
	"github.com/linguabridge/linguabridge/pkg/pipeline"
	"github.com/linguabridge/linguabridge/pkg/relay"
	"github.com/linguabridge/linguabridge/pkg/session"
	"github.com/linguabridge/linguabridge/pkg/translation"
	"github.com/linguabridge/linguabridge/pkg/transports"
)

// Engine wires rooms, pipelines, translation and relay together behind
// the transport handler surface. One Engine serves many rooms.
type Engine struct {
	cfg      Config
	registry *session.Registry
	relay    *relay.Relay
	resolver *translation.Resolver
	stt      transcribe.Transcriber
	tts      synth.Synthesizer
	obs      metrics.Observer
	pts      *frames.PTSGen
	logger   *slog.Logger

	mu      sync.Mutex
	rooms   map[string]*roomPipes
	sinks   map[string]relay.Sink
	allowed map[string]struct{}
}

// roomPipes is the per-room capture plumbing: one segmenter and one
// frame pipe per participant. Directions start once, at ACTIVE.
type roomPipes struct {
	started bool
	segs    map[string]*boundary.Segmenter
	pipes   map[string]*framePipe
}

func New(cfg Config, providers *ProviderRegistry) (*Engine, error) {
	if providers == nil {
		providers = DefaultRegistry()
	}

	stt, err := providers.BuildSTT(cfg.Vendors.STT)
	if err != nil {
		return nil, err
	}
	translator, err := providers.BuildTranslate(cfg.Vendors.Translate)
	if err != nil {
		return nil, err
	}
	tts, err := providers.BuildTTS(cfg.Vendors.TTS)
	if err != nil {
		return nil, err
	}

	var store translation.Store
	if cfg.Cache.Capacity > 0 {
		store, err = translation.NewLRUStore(cfg.Cache.Capacity)
		if err != nil {
			return nil, err
		}
	} else {
		store = translation.NewUnboundedStore()
	}

	obs := metrics.NewAsyncObserver(metrics.NewMemoryObserver(), 256)
	cache := translation.NewCache(store)
	cache.SetObserver(obs)

	resolver := translation.NewResolver(cache, translator, translation.ResolverConfig{
		DefaultLang:   cfg.Languages.Default,
		MinConfidence: cfg.Languages.MinDetectConfidence,
	})
	if d, ok := translator.(translate.Detector); ok {
		resolver.SetDetector(d)
	}

	rel := relay.New(cfg.Relay.ReplayWindow)
	rel.SetObserver(obs)

	allowed := make(map[string]struct{}, len(cfg.Languages.Allowed))
	for _, lang := range cfg.Languages.Allowed {
		allowed[strings.ToLower(strings.TrimSpace(lang))] = struct{}{}
	}

	e := &Engine{
		cfg: cfg,
		registry: session.NewRegistry(session.RegistryConfig{
			LivenessTimeout: time.Duration(cfg.Session.LivenessTimeoutMS) * time.Millisecond,
			SweepInterval:   time.Duration(cfg.Session.SweepIntervalMS) * time.Millisecond,
		}),
		relay:    rel,
		resolver: resolver,
		stt:      stt,
		tts:      tts,
		obs:      obs,
		pts:      frames.NewPTSGen(),
		rooms:    make(map[string]*roomPipes),
		sinks:    make(map[string]relay.Sink),
		allowed:  allowed,
		logger:   logging.NewComponentLogger(slog.Default(), "engine"),
	}
	e.registry.SetOnClose(e.onRoomClose)
	return e, nil
}

// Start launches the liveness janitor. It returns immediately; the
// engine serves until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.registry.Run(ctx)
	e.logger.Info("engine started",
		slog.String("stt", e.stt.Name()),
		slog.String("tts", e.tts.Name()))
}

// Drain closes every room; used on shutdown.
func (e *Engine) Drain() error {
	e.registry.CloseAll()
	if a, ok := e.obs.(*metrics.AsyncObserver); ok {
		a.Close()
	}
	return nil
}

// Join adds p to roomID and attaches their delivery sink. Joining an
// ACTIVE room with a known id is a reconnect; the replay backlog is
// flushed to the new sink.
func (e *Engine) Join(ctx context.Context, roomID string, p session.Participant, sink relay.Sink) (session.State, error) {
	if len(e.allowed) > 0 {
		if _, ok := e.allowed[p.Language]; !ok {
			return session.StateClosed, errorsx.New(errorsx.ReasonUnsupportedLanguage,
				"language not available: "+p.Language)
		}
	}

	room, state, err := e.registry.Join(roomID, p)
	if err != nil {
		return session.StateClosed, err
	}

	e.mu.Lock()
	rp := e.rooms[roomID]
	if rp == nil {
		rp = &roomPipes{
			segs:  make(map[string]*boundary.Segmenter),
			pipes: make(map[string]*framePipe),
		}
		e.rooms[roomID] = rp
	}
	if rp.segs[p.ID] == nil {
		pid := p.ID
		rp.segs[p.ID] = boundary.NewSegmenter(boundary.Config{
			RoomID:        roomID,
			ParticipantID: p.ID,
			SourceLang:    p.Language,
			SampleRate:    e.cfg.Boundary.SampleRate,
			SilenceRMS:    e.cfg.Boundary.SilenceRMS,
			MinSilence:    time.Duration(e.cfg.Boundary.MinSilenceMS) * time.Millisecond,
			MaxChunk:      time.Duration(e.cfg.Boundary.MaxChunkMS) * time.Millisecond,
			Buffer:        e.cfg.Boundary.Buffer,
			NextSeq:       func() uint64 { return room.NextSeq(pid) },
		})
		rp.pipes[p.ID] = newFramePipe(e.cfg.Boundary.Buffer * 4)
	}
	if sink != nil {
		e.sinks[scopeKey(roomID, p.ID)] = sink
	}
	start := state == session.StateActive && !rp.started
	if start {
		rp.started = true
	}
	e.mu.Unlock()

	e.relay.SetVoice(roomID, p.ID, p.Language, e.tts)
	if sink != nil {
		e.relay.AttachSink(ctx, roomID, p.ID, sink)
	}
	if start {
		e.startDirections(room, rp)
	}
	return state, nil
}

// startDirections brings up both halves of an ACTIVE room.
func (e *Engine) startDirections(room *session.Room, rp *roomPipes) {
	for _, p := range room.Participants() {
		d, err := pipeline.NewDirection(room, p.ID, e.stt, e.resolver, e.relay, pipeline.Config{
			MaxInFlight: e.cfg.Pipeline.MaxInFlight,
		})
		if err != nil {
			e.logger.Error("direction setup failed",
				slog.String("room_id", room.ID),
				slog.String("participant_id", p.ID),
				slog.String("error", err.Error()))
			continue
		}
		e.mu.Lock()
		seg := rp.segs[p.ID]
		pipe := rp.pipes[p.ID]
		e.mu.Unlock()

		go func() { _ = d.Run(room.Context(), seg.Utterances()) }()
		go e.runCapture(room, p.ID, seg, pipe)
	}
	e.logger.Info("room active", slog.String("room_id", room.ID))
}

// runCapture drives the segmenter from the participant's frame pipe. A
// terminal capture loss ends only this half of the room; the peer keeps
// talking and the speaker is told why they went quiet.
func (e *Engine) runCapture(room *session.Room, participantID string, seg *boundary.Segmenter, pipe *framePipe) {
	err := seg.Run(room.Context(), pipe)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	e.logger.Warn("capture ended",
		slog.String("room_id", room.ID),
		slog.String("participant_id", participantID),
		slog.String("reason", string(errorsx.Reason(err))))

	e.mu.Lock()
	sink := e.sinks[scopeKey(room.ID, participantID)]
	e.mu.Unlock()
	if sink != nil {
		_ = sink.Fail(context.Background(), relay.Failure{
			RoomID:    room.ID,
			SpeakerID: participantID,
			Reason:    errorsx.ReasonCaptureUnavailable,
			Message:   "audio capture ended",
		})
	}
}

// Leave removes the participant and closes the room for both sides.
func (e *Engine) Leave(roomID, participantID string) error {
	return e.registry.Leave(roomID, participantID)
}

// Detach disconnects the participant's sink without closing the room.
// Deliveries buffer in the replay window until they rejoin.
func (e *Engine) Detach(roomID, participantID string) {
	e.mu.Lock()
	delete(e.sinks, scopeKey(roomID, participantID))
	e.mu.Unlock()
	e.relay.DetachSink(roomID, participantID)
	e.logger.Info("sink detached",
		slog.String("room_id", roomID),
		slog.String("participant_id", participantID))
}

func (e *Engine) Heartbeat(roomID, participantID string) {
	e.registry.Heartbeat(roomID, participantID)
}

// SubmitText feeds one typed utterance into the participant's capture
// pipe, so typed and spoken input share one ordered stream.
func (e *Engine) SubmitText(ctx context.Context, roomID, participantID, text string) error {
	pipe, err := e.activePipe(roomID, participantID)
	if err != nil {
		return err
	}
	e.registry.Heartbeat(roomID, participantID)
	streamID := scopeKey(roomID, participantID)
	f := frames.NewTextFrame(streamID, e.pts.Next(streamID), text, map[string]string{
		frames.MetaRoomID:        roomID,
		frames.MetaParticipantID: participantID,
		frames.MetaSource:        "transport",
	})
	return pipe.Push(f)
}

// SubmitAudio feeds one PCM16 chunk into the participant's capture pipe.
func (e *Engine) SubmitAudio(ctx context.Context, roomID, participantID string, audio []byte, sampleRate int) error {
	pipe, err := e.activePipe(roomID, participantID)
	if err != nil {
		return err
	}
	e.registry.Heartbeat(roomID, participantID)
	streamID := scopeKey(roomID, participantID)
	f := frames.NewAudioFrameFromPool(streamID, e.pts.Next(streamID), audio, sampleRate, 1, map[string]string{
		frames.MetaRoomID:        roomID,
		frames.MetaParticipantID: participantID,
		frames.MetaSource:        "transport",
	})
	return pipe.Push(f)
}

// StartCapture pumps a local capture source into the participant's pipe
// until the source ends. Used for embedded rather than networked callers.
func (e *Engine) StartCapture(ctx context.Context, roomID, participantID string, src boundary.CaptureSource) error {
	pipe, err := e.activePipe(roomID, participantID)
	if err != nil {
		return err
	}
	go func() {
		for {
			f, err := src.ReadFrame(ctx)
			if err != nil {
				pipe.Fail(err)
				return
			}
			if err := pipe.Push(f); err != nil {
				return
			}
		}
	}()
	return nil
}

// Room returns the live room, for history and state inspection.
func (e *Engine) Room(roomID string) (*session.Room, bool) {
	return e.registry.Get(roomID)
}

// Stats exposes translation cache counters.
func (e *Engine) Stats() translation.Stats {
	return e.resolver.Stats()
}

// activePipe validates the room and hands back the participant's capture
// pipe in one critical section. The nil checks matter: a concurrent close
// can empty e.rooms between the registry lookup and the map read.
func (e *Engine) activePipe(roomID, participantID string) (*framePipe, error) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return nil, errorsx.New(errorsx.ReasonSessionClosed, "no such room: "+roomID)
	}
	if _, ok := room.Participant(participantID); !ok {
		return nil, errorsx.New(errorsx.ReasonSessionClosed,
			"participant "+participantID+" not in room "+roomID)
	}
	if room.State() != session.StateActive {
		return nil, errorsx.New(errorsx.ReasonRoomNotJoinable, "room is still waiting for a peer")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rp := e.rooms[roomID]
	if rp == nil || rp.pipes[participantID] == nil {
		return nil, errorsx.New(errorsx.ReasonSessionClosed, "no capture state for participant")
	}
	return rp.pipes[participantID], nil
}

func scopeKey(roomID, participantID string) string {
	return roomID + "/" + participantID
}

func (e *Engine) onRoomClose(room *session.Room) {
	e.relay.ReleaseRoom(room)
	e.mu.Lock()
	rp := e.rooms[room.ID]
	delete(e.rooms, room.ID)
	var closing []relay.Sink
	var ids []string
	for _, p := range room.Participants() {
		ids = append(ids, p.ID)
		key := scopeKey(room.ID, p.ID)
		if sink := e.sinks[key]; sink != nil {
			closing = append(closing, sink)
		}
		delete(e.sinks, key)
	}
	e.mu.Unlock()

	for _, sink := range closing {
		_ = sink.Fail(context.Background(), relay.Failure{
			RoomID:  room.ID,
			Reason:  errorsx.ReasonSessionClosed,
			Message: "room closed",
		})
	}

	if rp != nil {
		for _, pipe := range rp.pipes {
			pipe.Fail(boundary.ErrCaptureUnavailable)
		}
		for _, seg := range rp.segs {
			seg.Close()
		}
	}
	e.logger.Info("room released",
		slog.String("room_id", room.ID),
		slog.Int("participants", len(ids)))
}

var (
	_ transports.Handler = (*Engine)(nil)
)
