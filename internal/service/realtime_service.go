package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	gosync "sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/quill-go-api/internal/observability"
	"github.com/noah-isme/quill-go-api/internal/repository"
	syncpkg "github.com/noah-isme/quill-go-api/internal/sync"
)

const realtimeSendBufferSize = 32

// ErrRoomNotAllowed indicates the connection tried to subscribe to a room
// outside its scope.
var ErrRoomNotAllowed = errors.New("room not allowed for connection")

// RoomAuthorizer answers whether a teacher may watch a given session. The
// hub consults it on every session-scoped subscribe so one teacher cannot
// listen in on another teacher's class.
type RoomAuthorizer interface {
	TeacherOwnsSession(ctx context.Context, teacherID uint, sessionID string) bool
}

type sessionOwnership struct {
	sessions repository.SessionRepository
}

// NewSessionOwnership adapts the session repository into a RoomAuthorizer.
func NewSessionOwnership(sessions repository.SessionRepository) RoomAuthorizer {
	return &sessionOwnership{sessions: sessions}
}

func (o *sessionOwnership) TeacherOwnsSession(ctx context.Context, teacherID uint, sessionID string) bool {
	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false
	}
	return session.TeacherID == teacherID
}

// RealtimeConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeConnectionOptions struct {
	TeacherID uint
	StudentID string
	SessionID string
	Context   context.Context
}

// RealtimeService manages websocket push connections and event delivery.
// Delivery is best effort: room membership dies with the connection, so
// clients re-subscribe on reconnect and poll to cover losses.
type RealtimeService interface {
	EventPublisher
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
	Start(ctx context.Context)
}

type realtimeService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	authorizer  RoomAuthorizer
	logger      zerolog.Logger
	tracer      trace.Tracer
	hub         *realtimeHub
	nodeID      string
}

// realtimeHub keeps track of active websocket clients per room.
type realtimeHub struct {
	mu    gosync.RWMutex
	rooms map[string]map[*realtimeClient]struct{}
	log   zerolog.Logger
}

type realtimeClient struct {
	conn    *websocket.Conn
	send    chan syncpkg.Event
	options RealtimeConnectionOptions
	service *realtimeService
	closed  chan struct{}
	once    gosync.Once
	baseCtx context.Context

	mu    gosync.Mutex
	rooms map[string]struct{}
}

type realtimeEnvelope struct {
	Source string        `json:"source"`
	Event  syncpkg.Event `json:"event"`
}

// subscribeFrame is the only client-to-server message: room membership
// management. Everything else flows server to client.
type subscribeFrame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// NewRealtimeService creates the push fanout service. Redis and NATS legs
// are both optional; either carries events across nodes.
func NewRealtimeService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, authorizer RoomAuthorizer, logger zerolog.Logger) RealtimeService {
	hub := &realtimeHub{
		rooms: make(map[string]map[*realtimeClient]struct{}),
		log:   logger.With().Str("component", "realtime_hub").Logger(),
	}

	streamChannel := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":events"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &realtimeService{
		redis:       redisClient,
		redisStream: streamChannel,
		nats:        natsConn,
		natsSubject: natsSubject,
		authorizer:  authorizer,
		logger:      logger.With().Str("component", "realtime_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/quill-go-api/internal/service"),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Publish fans an event out to its rooms locally and across nodes.
func (s *realtimeService) Publish(ctx context.Context, event syncpkg.Event) {
	_, span := s.tracer.Start(ctx, "realtime.publish", trace.WithAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.String("event.session_id", event.SessionID),
	))
	defer span.End()

	s.deliver(event)

	envelope := realtimeEnvelope{Source: s.nodeID, Event: event}
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal realtime event")
		return
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish realtime event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish realtime event to nats")
		}
	}

	observability.RealtimeEventsPublished().WithLabelValues(string(event.Type)).Inc()
}

// eventRooms maps an event to the rooms that must hear it.
func eventRooms(event syncpkg.Event) []string {
	rooms := []string{syncpkg.SessionRoom(event.SessionID)}
	switch event.Type {
	case syncpkg.EventStudentJoined:
		rooms = append(rooms, syncpkg.TeacherGlobalRoom(event.TeacherID))
	case syncpkg.EventFeedbackReady:
		rooms = append(rooms, syncpkg.StudentRoom(event.SessionID, event.StudentID))
	case syncpkg.EventStudentSubmitted:
	}
	return rooms
}

func (s *realtimeService) deliver(event syncpkg.Event) {
	for _, room := range eventRooms(event) {
		s.hub.broadcast(room, event)
	}
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &realtimeClient{
		conn:    conn,
		send:    make(chan syncpkg.Event, realtimeSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
		rooms:   make(map[string]struct{}),
	}

	observability.RealtimeConnections().Inc()
	defer observability.RealtimeConnections().Dec()

	go client.writer()
	client.reader()
}

// allowedRoom scopes subscriptions: teachers may watch their own global feed
// and the sessions they own; students only their own room and session.
func (c *realtimeClient) allowedRoom(room string) bool {
	if c.options.TeacherID != 0 {
		if room == syncpkg.TeacherGlobalRoom(c.options.TeacherID) {
			return true
		}
		sessionID, ok := syncpkg.RoomSessionID(room)
		if !ok || c.service.authorizer == nil {
			return false
		}
		return c.service.authorizer.TeacherOwnsSession(c.baseCtx, c.options.TeacherID, sessionID)
	}
	if c.options.StudentID == "" {
		return false
	}
	return room == syncpkg.SessionRoom(c.options.SessionID) ||
		room == syncpkg.StudentRoom(c.options.SessionID, c.options.StudentID)
}

func (c *realtimeClient) reader() {
	defer c.close()

	for {
		var frame subscribeFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.service.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		room := strings.TrimSpace(frame.Room)
		if room == "" {
			continue
		}

		switch frame.Action {
		case "subscribe":
			if !c.allowedRoom(room) {
				c.service.logger.Warn().Err(ErrRoomNotAllowed).Str("room", room).Msg("rejected room subscription")
				continue
			}
			c.service.hub.join(room, c)
			c.mu.Lock()
			c.rooms[room] = struct{}{}
			c.mu.Unlock()
		case "unsubscribe":
			c.service.hub.leave(room, c)
			c.mu.Lock()
			delete(c.rooms, room)
			c.mu.Unlock()
		default:
			c.service.logger.Debug().Str("action", frame.Action).Msg("ignoring unknown realtime frame")
		}
	}
}

func (c *realtimeClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *realtimeClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		rooms := make([]string, 0, len(c.rooms))
		for room := range c.rooms {
			rooms = append(rooms, room)
		}
		c.mu.Unlock()
		for _, room := range rooms {
			c.service.hub.leave(room, c)
		}
		_ = c.conn.Close()
	})
}

func (s *realtimeService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "quill-realtime", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (s *realtimeService) handleEnvelope(data []byte) {
	var envelope realtimeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid realtime envelope")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.deliver(envelope.Event)
}

func (h *realtimeHub) join(room string, client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*realtimeClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Str("room", room).Msg("realtime client joined room")
}

func (h *realtimeHub) leave(room string, client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *realtimeHub) broadcast(room string, event syncpkg.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Str("room", room).Msg("dropping realtime event for slow client")
		}
	}
}
