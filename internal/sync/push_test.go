package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRoomSetAddIsIdempotent(t *testing.T) {
	rooms := NewRoomSet()

	require.True(t, rooms.Add("session:s1"))
	require.False(t, rooms.Add("session:s1"))
	require.True(t, rooms.Add("teacher:7:global"))
	require.ElementsMatch(t, []string{"session:s1", "teacher:7:global"}, rooms.List())

	rooms.Remove("session:s1")
	require.Equal(t, []string{"teacher:7:global"}, rooms.List())
}

// pushTestServer accepts websocket connections, records every room frame
// it reads together with the ordinal of the connection that sent it, and
// optionally drops each connection after a fixed number of frames.
type pushTestServer struct {
	srv        *httptest.Server
	upgrader   websocket.Upgrader
	dropAfter  int
	mu         gosync.Mutex
	conns      int
	frames     map[int][]pushFrame
	accepts    map[int]time.Time
	sendOnConn func(conn *websocket.Conn, ordinal int)
}

func newPushTestServer(t *testing.T, dropAfter int, sendOnConn func(conn *websocket.Conn, ordinal int)) *pushTestServer {
	t.Helper()
	s := &pushTestServer{
		dropAfter:  dropAfter,
		frames:     make(map[int][]pushFrame),
		accepts:    make(map[int]time.Time),
		sendOnConn: sendOnConn,
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		s.mu.Lock()
		s.conns++
		ordinal := s.conns
		s.accepts[ordinal] = time.Now()
		s.mu.Unlock()

		if s.sendOnConn != nil {
			s.sendOnConn(conn, ordinal)
		}

		read := 0
		for {
			var frame pushFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			s.mu.Lock()
			s.frames[ordinal] = append(s.frames[ordinal], frame)
			s.mu.Unlock()
			read++
			if s.dropAfter > 0 && read >= s.dropAfter {
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *pushTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *pushTestServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *pushTestServer) acceptedAt(ordinal int) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts[ordinal]
}

func (s *pushTestServer) roomsSeenBy(ordinal int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.frames[ordinal]))
	for _, frame := range s.frames[ordinal] {
		if frame.Action == "subscribe" {
			rooms = append(rooms, frame.Room)
		}
	}
	return rooms
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond())
}

func TestPushClientResubscribesHeldRoomsAfterReconnect(t *testing.T) {
	// The server drops each connection after reading both subscribe
	// frames, forcing a reconnect cycle.
	server := newPushTestServer(t, 2, nil)

	client := NewPushClient(PushClientConfig{
		URL:            server.url(),
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Logger:         zerolog.Nop(),
	}, nil)
	client.Subscribe("session:s1")
	client.Subscribe("session:s1:student:stu-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitFor(t, func() bool { return server.connections() >= 2 })
	waitFor(t, func() bool { return len(server.roomsSeenBy(2)) == 2 })

	want := []string{"session:s1", "session:s1:student:stu-1"}
	require.ElementsMatch(t, want, server.roomsSeenBy(1))
	require.ElementsMatch(t, want, server.roomsSeenBy(2))
}

func TestPushClientUnsubscribedRoomNotRestored(t *testing.T) {
	server := newPushTestServer(t, 1, nil)

	client := NewPushClient(PushClientConfig{
		URL:            server.url(),
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Logger:         zerolog.Nop(),
	}, nil)
	client.Subscribe("session:s1")
	client.Unsubscribe("session:s1")
	client.Subscribe("teacher:7:global")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitFor(t, func() bool { return server.connections() >= 2 })
	waitFor(t, func() bool { return len(server.roomsSeenBy(2)) >= 1 })

	require.Equal(t, []string{"teacher:7:global"}, server.roomsSeenBy(2))
}

func TestPushClientBackoffResetsAfterHealthyConnection(t *testing.T) {
	// The first three connections drop instantly, driving the backoff to
	// its cap. The fourth stays open past the cap before dropping.
	const healthyHold = 300 * time.Millisecond
	server := newPushTestServer(t, 0, func(conn *websocket.Conn, ordinal int) {
		if ordinal == 4 {
			time.Sleep(healthyHold)
		}
		_ = conn.Close()
	})

	client := NewPushClient(PushClientConfig{
		URL:            server.url(),
		InitialBackoff: 30 * time.Millisecond,
		MaxBackoff:     240 * time.Millisecond,
		Logger:         zerolog.Nop(),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitFor(t, func() bool { return server.connections() >= 5 })

	// The retry after the healthy drop uses the initial delay again
	// instead of the streak's capped one.
	gap := server.acceptedAt(5).Sub(server.acceptedAt(4).Add(healthyHold))
	require.Less(t, gap, 150*time.Millisecond)
}

func TestPushClientDeliversDecodedEvents(t *testing.T) {
	server := newPushTestServer(t, 0, func(conn *websocket.Conn, ordinal int) {
		_ = conn.WriteJSON(Event{
			Type:      EventFeedbackReady,
			SessionID: "s1",
			StudentID: "stu-1",
			SentAt:    time.Now().UTC(),
		})
	})

	received := make(chan Event, 1)
	client := NewPushClient(PushClientConfig{
		URL:            server.url(),
		InitialBackoff: 5 * time.Millisecond,
		Logger:         zerolog.Nop(),
	}, func(event Event) {
		select {
		case received <- event:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case event := <-received:
		require.Equal(t, EventFeedbackReady, event.Type)
		require.Equal(t, "s1", event.SessionID)
		require.Equal(t, "stu-1", event.StudentID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered over the push channel")
	}
}
