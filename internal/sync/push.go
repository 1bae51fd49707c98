package sync

import (
	"context"
	"encoding/json"
	"errors"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrTransportDropped indicates the push connection was lost. It is handled
// internally by the reconnect loop and never surfaced to the end user unless
// the poll fallback also fails.
var ErrTransportDropped = errors.New("push transport dropped")

// RoomSet tracks the rooms a client holds. Connection loss silently drops
// server-side membership, so the set is the client's memory of what to
// re-subscribe after a reconnect.
type RoomSet struct {
	mu    gosync.Mutex
	rooms map[string]struct{}
}

// NewRoomSet returns an empty room set.
func NewRoomSet() *RoomSet {
	return &RoomSet{rooms: make(map[string]struct{})}
}

// Add records a room. It reports whether the room is new.
func (r *RoomSet) Add(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room]; ok {
		return false
	}
	r.rooms[room] = struct{}{}
	return true
}

// Remove forgets a room.
func (r *RoomSet) Remove(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, room)
}

// List returns the held rooms.
func (r *RoomSet) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

type pushFrame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// PushClientConfig tunes a PushClient.
type PushClientConfig struct {
	URL              string
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	HandshakeTimeout time.Duration
	Logger           zerolog.Logger
}

// PushClient maintains the client side of the push channel: it dials the
// websocket endpoint, re-subscribes every held room after each reconnect,
// and hands decoded events to the owner's handler. Delivery remains best
// effort; the poll fallback covers whatever this channel loses.
type PushClient struct {
	cfg     PushClientConfig
	dialer  *websocket.Dialer
	handler func(Event)
	rooms   *RoomSet

	mu   gosync.Mutex
	conn *websocket.Conn
}

// NewPushClient builds a push client; Run drives it.
func NewPushClient(cfg PushClientConfig, handler func(Event)) *PushClient {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &PushClient{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		handler: handler,
		rooms:   NewRoomSet(),
	}
}

// Subscribe adds a room and, when connected, sends the subscription frame.
// The room survives reconnects until Unsubscribe.
func (c *PushClient) Subscribe(room string) {
	c.rooms.Add(room)
	c.sendFrame(pushFrame{Action: "subscribe", Room: room})
}

// Unsubscribe drops a room.
func (c *PushClient) Unsubscribe(room string) {
	c.rooms.Remove(room)
	c.sendFrame(pushFrame{Action: "unsubscribe", Room: room})
}

func (c *PushClient) sendFrame(frame pushFrame) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteJSON(frame); err != nil {
		c.cfg.Logger.Debug().Err(err).Str("room", frame.Room).Msg("failed to send room frame")
	}
}

// Run dials and reads until the context is cancelled, reconnecting with
// exponential backoff after every drop.
func (c *PushClient) Run(ctx context.Context) {
	backoff := c.cfg.InitialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		if err := c.connectAndRead(ctx); err != nil {
			c.cfg.Logger.Debug().Err(err).Dur("backoff", backoff).Msg("push connection lost")
		}
		if ctx.Err() != nil {
			return
		}

		// A connection that outlived a full backoff window was healthy;
		// the next drop should retry fast rather than inherit the old
		// streak's near-max delay.
		if time.Since(start) >= c.cfg.MaxBackoff {
			backoff = c.cfg.InitialBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

func (c *PushClient) connectAndRead(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	// Server-side membership died with the previous connection; rebuild it.
	for _, room := range c.rooms.List() {
		if err := conn.WriteJSON(pushFrame{Action: "subscribe", Room: room}); err != nil {
			return errors.Join(ErrTransportDropped, err)
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return errors.Join(ErrTransportDropped, err)
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.cfg.Logger.Warn().Err(err).Msg("invalid push event payload")
			continue
		}
		if c.handler != nil {
			c.handler(event)
		}
	}
}
