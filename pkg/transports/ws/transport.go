package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/logging"
	"github.com/linguabridge/linguabridge/pkg/relay"
	"github.com/linguabridge/linguabridge/pkg/session"
	"github.com/linguabridge/linguabridge/pkg/transports"
)

type Config struct {
	ServerAddr     string        `mapstructure:"server_addr"`
	Path           string        `mapstructure:"path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowAnyOrigin bool          `mapstructure:"allow_any_origin"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Transport serves participant connections over websocket. The first
// message on a connection must be a join envelope; after that the
// connection carries utterances one way and deliveries the other.
type Transport struct {
	cfg      Config
	handler  transports.Handler
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
	draining atomic.Bool
}

func New(cfg Config, h transports.Handler) *Transport {
	cfg = cfg.withDefaults()
	return &Transport{
		cfg:     cfg,
		handler: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.AllowAnyOrigin || r.Header.Get("Origin") == ""
			},
		},
		logger: logging.NewComponentLogger(slog.Default(), "ws_transport"),
	}
}

func (t *Transport) Name() string { return "websocket" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.Path, t.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("server stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	t.logger.Info("listening",
		slog.String("addr", t.cfg.ServerAddr),
		slog.String("path", t.cfg.Path))
	return nil
}

func (t *Transport) Stop() error {
	if !t.draining.CompareAndSwap(false, true) {
		return nil
	}
	if t.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}

func (t *Transport) handleWS(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}
	go t.serve(r.Context(), ws)
}

func (t *Transport) serve(ctx context.Context, ws *websocket.Conn) {
	defer ws.Close()
	ws.SetReadLimit(t.cfg.ReadLimit)

	c := &conn{ws: ws, timeout: t.cfg.WriteTimeout}

	var first transports.Envelope
	if err := ws.ReadJSON(&first); err != nil || first.Type != transports.TypeJoin {
		_ = c.send(transports.Envelope{
			Type:    transports.TypeError,
			Reason:  string(errorsx.ReasonRoomNotJoinable),
			Message: "first message must be a join",
		})
		return
	}

	p := session.NewParticipant(first.ParticipantID, first.DisplayName, first.Language)
	state, err := t.handler.Join(ctx, first.RoomID, p, c)
	if err != nil {
		_ = c.send(transports.Envelope{
			Type:    transports.TypeError,
			RoomID:  first.RoomID,
			Reason:  string(errorsx.Reason(err)),
			Message: err.Error(),
		})
		return
	}
	_ = c.send(transports.Envelope{
		Type:          transports.TypeJoined,
		RoomID:        first.RoomID,
		ParticipantID: p.ID,
		State:         state.String(),
	})
	t.logger.Info("participant connected",
		slog.String("room_id", first.RoomID),
		slog.String("participant_id", p.ID),
		slog.String("state", state.String()))

	t.readLoop(ctx, c, first.RoomID, p.ID)
}

// readLoop pumps inbound envelopes until the peer leaves or the socket
// drops. A dropped socket detaches the sink, leaving the room open for
// reconnects; an explicit leave closes the room.
func (t *Transport) readLoop(ctx context.Context, c *conn, roomID, participantID string) {
	for {
		var env transports.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			t.logger.Info("participant disconnected",
				slog.String("room_id", roomID),
				slog.String("participant_id", participantID))
			t.handler.Detach(roomID, participantID)
			return
		}
		switch env.Type {
		case transports.TypeUtterance:
			var err error
			if len(env.Audio) > 0 {
				err = t.handler.SubmitAudio(ctx, roomID, participantID, env.Audio, env.SampleRate)
			} else {
				err = t.handler.SubmitText(ctx, roomID, participantID, env.Text)
			}
			if err != nil {
				_ = c.send(transports.Envelope{
					Type:    transports.TypeError,
					RoomID:  roomID,
					Reason:  string(errorsx.Reason(err)),
					Message: err.Error(),
				})
			}
		case transports.TypeHeartbeat:
			t.handler.Heartbeat(roomID, participantID)
		case transports.TypeLeave:
			_ = t.handler.Leave(roomID, participantID)
			return
		default:
			t.logger.Debug("unknown envelope type", slog.String("type", env.Type))
		}
	}
}

// conn adapts one websocket to a relay sink. Writes are serialized; the
// websocket allows a single writer.
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

func (c *conn) send(env transports.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.ws.WriteJSON(env); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return nil
}

func (c *conn) Speak(_ context.Context, d relay.Delivery) error {
	return c.send(transports.Envelope{
		Type:          transports.TypeDelivery,
		RoomID:        d.RoomID,
		SpeakerID:     d.SpeakerID,
		ParticipantID: d.RecipientID,
		Translated:    d.Translated,
		TargetLang:    d.TargetLang,
		SequenceNo:    d.SequenceNo,
		Audio:         d.Audio,
		SampleRate:    d.SampleRate,
		TextOnly:      d.TextOnly,
	})
}

func (c *conn) Echo(_ context.Context, e relay.Echo) error {
	return c.send(transports.Envelope{
		Type:       transports.TypeEcho,
		RoomID:     e.RoomID,
		SpeakerID:  e.SpeakerID,
		Original:   e.Original,
		Translated: e.Translated,
		SequenceNo: e.SequenceNo,
	})
}

func (c *conn) Fail(_ context.Context, f relay.Failure) error {
	return c.send(transports.Envelope{
		Type:       transports.TypeError,
		RoomID:     f.RoomID,
		SpeakerID:  f.SpeakerID,
		SequenceNo: f.SequenceNo,
		Reason:     string(f.Reason),
		Message:    f.Message,
	})
}

var (
	_ transports.Transport = (*Transport)(nil)
	_ relay.Sink           = (*conn)(nil)
)
