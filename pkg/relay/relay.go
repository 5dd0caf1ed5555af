package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/linguabridge/linguabridge/pkg/adapters/synth"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/logging"
	"github.com/linguabridge/linguabridge/pkg/metrics"
	"github.com/linguabridge/linguabridge/pkg/session"
)

// DefaultReplayWindow bounds how many undelivered utterances are retained
// per recipient while their sink is detached.
const DefaultReplayWindow = 16

type pendingItem struct {
	original   string
	translated string
	skip       bool
	silent     bool
	reason     errorsx.ReasonCode
	message    string
}

type replayItem struct {
	original   string
	translated string
	speakerID  string
	roomID     string
	seq        uint64
}

// Relay forwards each translated utterance to the one participant who did
// not produce it. The speaker is excluded by the addressing rule itself
// (session.Room.Peer), so a speaker can never receive their own audio.
// Per direction, deliveries are released in sequence order regardless of
// the order translations finish in.
type voice struct {
	syn  synth.Synthesizer
	lang string
}

type Relay struct {
	mu sync.Mutex
	// All maps are keyed by roomID/participantID.
	sinks   map[string]Sink
	voices  map[string]voice
	next    map[string]uint64
	pending map[string]map[uint64]pendingItem
	replay  map[string][]replayItem
	dirs    map[string]*sync.Mutex
	window  int
	obs     metrics.Observer
	logger  *slog.Logger
}

func New(window int) *Relay {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &Relay{
		sinks:   make(map[string]Sink),
		voices:  make(map[string]voice),
		next:    make(map[string]uint64),
		pending: make(map[string]map[uint64]pendingItem),
		replay:  make(map[string][]replayItem),
		dirs:    make(map[string]*sync.Mutex),
		window:  window,
		obs:     metrics.NoopObserver{},
		logger:  logging.NewComponentLogger(slog.Default(), "relay"),
	}
}

func (r *Relay) SetObserver(obs metrics.Observer) {
	if obs != nil {
		r.obs = obs
	}
}

// SetVoice installs the synthesizer and language used when delivering to
// the participant in that room. Voices are room-scoped: the same
// participant id in two rooms carries two independent voices.
func (r *Relay) SetVoice(roomID, participantID, lang string, syn synth.Synthesizer) {
	r.mu.Lock()
	r.voices[directionKey(roomID, participantID)] = voice{syn: syn, lang: lang}
	r.mu.Unlock()
}

// AttachSink connects a participant's delivery target and flushes any
// retained utterances for them, oldest first. Sinks are room-scoped so
// rooms that happen to reuse a participant id never cross-deliver.
func (r *Relay) AttachSink(ctx context.Context, roomID, participantID string, sink Sink) {
	key := directionKey(roomID, participantID)
	r.mu.Lock()
	r.sinks[key] = sink
	backlog := r.replay[key]
	delete(r.replay, key)
	r.mu.Unlock()

	for _, it := range backlog {
		d := r.render(ctx, it, participantID)
		if err := sink.Speak(ctx, d); err != nil {
			r.logger.Warn("replay delivery failed",
				slog.String("room_id", roomID),
				slog.String("participant_id", participantID),
				slog.Uint64("sequence", it.seq))
			continue
		}
		r.record("delivery_replayed", it.roomID, it.speakerID, it.seq)
	}
}

// DetachSink disconnects a participant; subsequent deliveries land in the
// replay window until they re-attach or the window overflows.
func (r *Relay) DetachSink(roomID, participantID string) {
	r.mu.Lock()
	delete(r.sinks, directionKey(roomID, participantID))
	r.mu.Unlock()
}

// ReleaseRoom drops all relay state for a closed room.
func (r *Relay) ReleaseRoom(room *session.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range room.Participants() {
		key := directionKey(room.ID, p.ID)
		delete(r.sinks, key)
		delete(r.voices, key)
		delete(r.replay, key)
		delete(r.next, key)
		delete(r.pending, key)
		delete(r.dirs, key)
	}
}

// Deliver hands utterance seq from speakerID to the peer, reordering per
// direction, and echoes the text pair back to the speaker for display.
func (r *Relay) Deliver(ctx context.Context, room *session.Room, speakerID, original, translated string, seq uint64) error {
	if _, ok := room.Peer(speakerID); !ok {
		return errorsx.New(errorsx.ReasonSessionClosed, "no peer for speaker "+speakerID+" in room "+room.ID)
	}
	r.release(ctx, room, speakerID, seq, pendingItem{original: original, translated: translated})
	return nil
}

// Abort marks utterance seq as dropped: the speaker is notified, ordering
// advances past the gap, and the peer sees nothing.
func (r *Relay) Abort(ctx context.Context, room *session.Room, speakerID string, seq uint64, reason errorsx.ReasonCode, msg string) {
	r.release(ctx, room, speakerID, seq, pendingItem{skip: true, reason: reason, message: msg})
}

// Skip advances ordering past seq with no notification to either side.
// Used when an utterance produced nothing deliverable.
func (r *Relay) Skip(ctx context.Context, room *session.Room, speakerID string, seq uint64) {
	r.release(ctx, room, speakerID, seq, pendingItem{skip: true, silent: true})
}

// release buffers the item and delivers every contiguous sequence from the
// direction's cursor. The per-direction mutex serializes delivery order;
// directions never block each other.
func (r *Relay) release(ctx context.Context, room *session.Room, speakerID string, seq uint64, item pendingItem) {
	dir := directionKey(room.ID, speakerID)
	dm := r.dirMutex(dir)
	dm.Lock()
	defer dm.Unlock()

	r.mu.Lock()
	if r.next[dir] == 0 {
		r.next[dir] = 1
	}
	if r.pending[dir] == nil {
		r.pending[dir] = make(map[uint64]pendingItem)
	}
	r.pending[dir][seq] = item

	type release struct {
		seq  uint64
		item pendingItem
	}
	var batch []release
	for {
		it, ok := r.pending[dir][r.next[dir]]
		if !ok {
			break
		}
		delete(r.pending[dir], r.next[dir])
		batch = append(batch, release{seq: r.next[dir], item: it})
		r.next[dir]++
	}
	r.mu.Unlock()

	for _, rel := range batch {
		if rel.item.skip {
			r.notifyFailure(ctx, room, speakerID, rel.seq, rel.item)
			continue
		}
		r.deliverOne(ctx, room, speakerID, rel.seq, rel.item)
	}
}

func (r *Relay) deliverOne(ctx context.Context, room *session.Room, speakerID string, seq uint64, it pendingItem) {
	peer, ok := room.Peer(speakerID)
	if !ok {
		return
	}

	room.AppendHistory(session.Exchange{
		SpeakerID:  speakerID,
		Original:   it.original,
		Translated: it.translated,
		TargetLang: peer.Language,
		SequenceNo: seq,
		At:         time.Now(),
	})

	r.mu.Lock()
	speakerSink := r.sinks[directionKey(room.ID, speakerID)]
	peerSink := r.sinks[directionKey(room.ID, peer.ID)]
	r.mu.Unlock()

	if speakerSink != nil {
		_ = speakerSink.Echo(ctx, Echo{
			RoomID:     room.ID,
			SpeakerID:  speakerID,
			Original:   it.original,
			Translated: it.translated,
			SequenceNo: seq,
		})
	}

	rep := replayItem{
		original:   it.original,
		translated: it.translated,
		speakerID:  speakerID,
		roomID:     room.ID,
		seq:        seq,
	}
	if peerSink == nil {
		r.retain(peer.ID, rep)
		return
	}
	d := r.render(ctx, rep, peer.ID)
	if err := peerSink.Speak(ctx, d); err != nil {
		r.logger.Warn("delivery failed, retaining for replay",
			slog.String("room_id", room.ID),
			slog.String("recipient", peer.ID),
			slog.Uint64("sequence", seq))
		r.retain(peer.ID, rep)
		return
	}
	r.record("delivery", room.ID, speakerID, seq)
}

// render synthesizes the translation in the recipient's voice, degrading to
// text-only when the language is unsupported or synthesis fails.
func (r *Relay) render(ctx context.Context, it replayItem, recipientID string) Delivery {
	r.mu.Lock()
	v := r.voices[directionKey(it.roomID, recipientID)]
	r.mu.Unlock()

	d := Delivery{
		RoomID:      it.roomID,
		SpeakerID:   it.speakerID,
		RecipientID: recipientID,
		Translated:  it.translated,
		TargetLang:  v.lang,
		SequenceNo:  it.seq,
		TextOnly:    true,
	}
	// Capability is asked up front; a runtime failure still degrades.
	if v.syn == nil || !synth.Supports(v.syn, v.lang) {
		return d
	}
	res, err := v.syn.Synthesize(ctx, it.translated, v.lang)
	if err != nil || res.TextOnly {
		if err != nil {
			r.logger.Warn("synthesis unavailable, text-only delivery",
				slog.String("recipient", recipientID),
				slog.String("language", v.lang),
				slog.String("reason", string(errorsx.ReasonSynthesisUnavailable)))
		}
		return d
	}
	d.Audio = res.Audio
	d.SampleRate = res.SampleRate
	d.TextOnly = false
	return d
}

func (r *Relay) notifyFailure(ctx context.Context, room *session.Room, speakerID string, seq uint64, it pendingItem) {
	if it.silent {
		r.record("utterance_skipped", room.ID, speakerID, seq)
		return
	}
	r.record("utterance_dropped", room.ID, speakerID, seq)
	r.mu.Lock()
	sink := r.sinks[directionKey(room.ID, speakerID)]
	r.mu.Unlock()
	if sink == nil {
		return
	}
	_ = sink.Fail(ctx, Failure{
		RoomID:     room.ID,
		SpeakerID:  speakerID,
		SequenceNo: seq,
		Reason:     it.reason,
		Message:    it.message,
	})
}

func (r *Relay) retain(recipientID string, it replayItem) {
	key := directionKey(it.roomID, recipientID)
	r.mu.Lock()
	defer r.mu.Unlock()
	backlog := append(r.replay[key], it)
	if len(backlog) > r.window {
		backlog = backlog[len(backlog)-r.window:]
	}
	r.replay[key] = backlog
	r.obs.RecordEvent(metrics.MetricsEvent{
		Name: "delivery_retained",
		Time: time.Now(),
		Tags: map[string]string{"room_id": it.roomID, "recipient": recipientID},
	})
}

func (r *Relay) dirMutex(dir string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.dirs[dir]; ok {
		return m
	}
	m := &sync.Mutex{}
	r.dirs[dir] = m
	return m
}

func (r *Relay) record(name, roomID, speakerID string, seq uint64) {
	r.obs.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: float64(seq),
		Tags:  map[string]string{"room_id": roomID, "speaker_id": speakerID},
	})
}

func directionKey(roomID, speakerID string) string {
	return roomID + "/" + speakerID
}
