package session

import (
	"context"
	"sync"
	"time"
)

// State is the room lifecycle state.
type State int

const (
	StateWaitingForPeer State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWaitingForPeer:
		return "WAITING_FOR_PEER"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}

// Room pairs exactly two participants under a shared identifier. History is
// append-only; per-participant sequence counters survive reconnects.
type Room struct {
	ID      string
	Created time.Time

	mu       sync.RWMutex
	state    State
	a, b     *Participant
	history  []Exchange
	seqs     map[string]uint64
	lastSeen map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func newRoom(parent context.Context, id string) *Room {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Room{
		ID:       id,
		Created:  time.Now(),
		state:    StateWaitingForPeer,
		seqs:     make(map[string]uint64),
		lastSeen: make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Context is cancelled when the room closes; in-flight port calls for this
// session hang off it.
func (r *Room) Context() context.Context { return r.ctx }

func (r *Room) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// transitionValid checks the room state machine (lock held by caller).
func transitionValid(from, to State) bool {
	switch from {
	case StateWaitingForPeer:
		return to == StateActive || to == StateClosed
	case StateActive:
		return to == StateClosed
	default:
		return false
	}
}

// join admits p. A repeated id is a reconnect of the same identity; a third
// distinct identity is rejected. Returns the resulting state.
func (r *Room) join(p Participant) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return r.state, errRoomNotJoinable(r.ID, "room closed")
	}
	p.RoomID = r.ID
	r.lastSeen[p.ID] = time.Now()

	switch {
	case r.a == nil:
		r.a = &p
	case r.a.ID == p.ID:
		r.a = &p
	case r.b == nil:
		r.b = &p
		if !transitionValid(r.state, StateActive) {
			return r.state, &InvalidTransitionError{From: r.state, To: StateActive}
		}
		r.state = StateActive
	case r.b.ID == p.ID:
		r.b = &p
	default:
		return r.state, errRoomNotJoinable(r.ID, "room full")
	}
	return r.state, nil
}

// close moves the room to CLOSED and cancels its context. Idempotent.
func (r *Room) close() {
	r.mu.Lock()
	if r.state != StateClosed {
		r.state = StateClosed
	}
	r.mu.Unlock()
	r.cancel()
}

// Participant returns the identified member.
func (r *Room) Participant(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.a != nil && r.a.ID == id {
		return *r.a, true
	}
	if r.b != nil && r.b.ID == id {
		return *r.b, true
	}
	return Participant{}, false
}

// Peer returns the member whose id differs from speakerID. This is the
// addressing rule the relay relies on: a speaker can never select itself.
func (r *Room) Peer(speakerID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.a != nil && r.a.ID == speakerID:
		if r.b != nil {
			return *r.b, true
		}
	case r.b != nil && r.b.ID == speakerID:
		if r.a != nil {
			return *r.a, true
		}
	}
	return Participant{}, false
}

// Participants returns the current members, one or two of them.
func (r *Room) Participants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, 2)
	if r.a != nil {
		out = append(out, *r.a)
	}
	if r.b != nil {
		out = append(out, *r.b)
	}
	return out
}

// NextSeq issues the next sequence number for the participant's direction.
func (r *Room) NextSeq(participantID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[participantID]++
	return r.seqs[participantID]
}

// AppendHistory records one delivered exchange.
func (r *Room) AppendHistory(x Exchange) {
	r.mu.Lock()
	r.history = append(r.history, x)
	r.mu.Unlock()
}

// History returns a copy of the recorded exchanges, oldest first.
func (r *Room) History() []Exchange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Exchange, len(r.history))
	copy(out, r.history)
	return out
}

// Heartbeat marks the participant alive.
func (r *Room) Heartbeat(participantID string) {
	r.mu.Lock()
	if _, ok := r.lastSeen[participantID]; ok {
		r.lastSeen[participantID] = time.Now()
	}
	r.mu.Unlock()
}

// idleSince reports whether any member has been silent longer than timeout.
func (r *Room) idleSince(now time.Time, timeout time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, seen := range r.lastSeen {
		if now.Sub(seen) > timeout {
			return true
		}
	}
	return false
}
