package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/logging"
)

func errRoomNotJoinable(roomID, why string) error {
	return errorsx.New(errorsx.ReasonRoomNotJoinable, "room "+roomID+" not joinable: "+why)
}

// RegistryConfig tunes room lifecycle management.
type RegistryConfig struct {
	// LivenessTimeout closes a room when any member stops heartbeating.
	LivenessTimeout time.Duration
	// SweepInterval is how often the janitor scans for abandoned rooms.
	SweepInterval time.Duration
}

// Registry is the process-wide map of room identifier to room. Joins and
// leaves for one room are serialized; closed room ids are tombstoned and
// never reused.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	closed map[string]time.Time
	cfg    RegistryConfig
	parent context.Context
	logger *slog.Logger

	// onClose runs outside the registry lock after a room closes.
	onClose func(*Room)
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = 60 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		closed: make(map[string]time.Time),
		cfg:    cfg,
		parent: context.Background(),
		logger: logging.NewComponentLogger(slog.Default(), "session_registry"),
	}
}

// SetOnClose registers a teardown hook invoked once per closed room.
func (g *Registry) SetOnClose(fn func(*Room)) {
	g.mu.Lock()
	g.onClose = fn
	g.mu.Unlock()
}

// Join admits p to roomID, creating the room on first join. The returned
// state is the room state after the join.
func (g *Registry) Join(roomID string, p Participant) (*Room, State, error) {
	g.mu.Lock()
	if _, gone := g.closed[roomID]; gone {
		g.mu.Unlock()
		return nil, StateClosed, errRoomNotJoinable(roomID, "identifier already used")
	}
	room, ok := g.rooms[roomID]
	if !ok {
		room = newRoom(g.parent, roomID)
		g.rooms[roomID] = room
	}
	g.mu.Unlock()

	state, err := room.join(p)
	if err != nil {
		return nil, state, err
	}
	g.logger.Info("participant joined",
		slog.String("room_id", roomID),
		slog.String("participant_id", p.ID),
		slog.String("language", p.Language),
		slog.String("state", state.String()))
	return room, state, nil
}

// Get returns the live room for roomID.
func (g *Registry) Get(roomID string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[roomID]
	return room, ok
}

// Leave closes the room: either participant leaving tears the session down.
func (g *Registry) Leave(roomID, participantID string) error {
	g.mu.Lock()
	room, ok := g.rooms[roomID]
	g.mu.Unlock()
	if !ok {
		return errRoomNotJoinable(roomID, "unknown room")
	}
	if _, member := room.Participant(participantID); !member {
		return errorsx.New(errorsx.ReasonRoomNotJoinable, "participant "+participantID+" not in room "+roomID)
	}
	g.logger.Info("participant left",
		slog.String("room_id", roomID),
		slog.String("participant_id", participantID))
	g.closeRoom(room)
	return nil
}

// Heartbeat marks the participant alive for the liveness janitor.
func (g *Registry) Heartbeat(roomID, participantID string) {
	if room, ok := g.Get(roomID); ok {
		room.Heartbeat(participantID)
	}
}

// Run drives the liveness janitor until ctx is done.
func (g *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.Sweep(now)
		}
	}
}

// Sweep closes rooms whose members went silent past the liveness timeout.
// Returns how many rooms it closed.
func (g *Registry) Sweep(now time.Time) int {
	g.mu.Lock()
	var stale []*Room
	for _, room := range g.rooms {
		if room.idleSince(now, g.cfg.LivenessTimeout) {
			stale = append(stale, room)
		}
	}
	g.mu.Unlock()

	for _, room := range stale {
		g.logger.Warn("liveness timeout, reclaiming room",
			slog.String("room_id", room.ID))
		g.closeRoom(room)
	}
	return len(stale)
}

// CloseAll tears down every live room.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.Unlock()
	for _, room := range rooms {
		g.closeRoom(room)
	}
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

func (g *Registry) closeRoom(room *Room) {
	room.close()
	g.mu.Lock()
	_, live := g.rooms[room.ID]
	delete(g.rooms, room.ID)
	g.closed[room.ID] = time.Now()
	hook := g.onClose
	g.mu.Unlock()
	if live && hook != nil {
		hook(room)
	}
}
