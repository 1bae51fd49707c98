// Package sync implements the client side of the session synchronization
// protocol: a best-effort push channel with room semantics, a polling
// fallback under failure backoff, and an optimistic merge of the two. The
// package is transport-agnostic except for the websocket push client; every
// policy decision lives behind small interfaces so it can be tested without
// a network.
package sync

import (
	"fmt"
	"strings"
	"time"
)

// EventType names the server-originated push events.
type EventType string

const (
	// EventStudentJoined announces a new participant in a session.
	EventStudentJoined EventType = "student-joined"
	// EventStudentSubmitted announces that a participant submitted work.
	EventStudentSubmitted EventType = "student-submitted"
	// EventFeedbackReady announces that reviewed feedback was released.
	EventFeedbackReady EventType = "feedback-ready"
)

// Event is the wire payload fanned out over the push channel. Delivery is
// best effort: consumers must tolerate loss, duplication, and reordering
// relative to the polling channel.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	TeacherID uint      `json:"teacher_id"`
	StudentID string    `json:"student_id"`
	Student   *Snapshot `json:"student,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Snapshot is the slim student view carried inside push events and poll
// responses. Authoritative polls may carry richer submission content than
// the event that raced them; the reconciler prefers the freshest
// server-confirmed copy either way.
type Snapshot struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	JoinedAt       time.Time `json:"joined_at"`
	RevisionCount  int       `json:"revision_count"`
	HasFeedback    bool      `json:"has_feedback"`
	ContentPreview string    `json:"content_preview,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SessionRoom names the room a teacher joins to watch one session.
func SessionRoom(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// TeacherGlobalRoom names the cross-session feed for joins into sessions
// whose ids the dashboard cannot know yet.
func TeacherGlobalRoom(teacherID uint) string {
	return fmt.Sprintf("teacher:%d:global", teacherID)
}

// StudentRoom names the room a single student listens on for their own
// feedback.
func StudentRoom(sessionID, studentID string) string {
	return fmt.Sprintf("session:%s:student:%s", sessionID, studentID)
}

// RoomSessionID extracts the session id from a session or student room
// name. It reports false for teacher feeds and malformed names.
func RoomSessionID(room string) (string, bool) {
	rest, ok := strings.CutPrefix(room, "session:")
	if !ok || rest == "" {
		return "", false
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
