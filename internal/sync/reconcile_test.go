package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func joinedEvent(studentID, name string, at time.Time) Event {
	return Event{
		Type:      EventStudentJoined,
		SessionID: "sess-1",
		StudentID: studentID,
		Student: &Snapshot{
			ID:        studentID,
			Name:      name,
			Status:    "active",
			JoinedAt:  at,
			UpdatedAt: at,
		},
		SentAt: at,
	}
}

func TestRoomSessionID(t *testing.T) {
	cases := []struct {
		room string
		want string
		ok   bool
	}{
		{SessionRoom("sess-1"), "sess-1", true},
		{StudentRoom("sess-1", "stu-1"), "sess-1", true},
		{TeacherGlobalRoom(7), "", false},
		{"session:", "", false},
		{"bogus", "", false},
	}
	for _, tc := range cases {
		got, ok := RoomSessionID(tc.room)
		require.Equal(t, tc.ok, ok, tc.room)
		require.Equal(t, tc.want, got, tc.room)
	}
}

func TestApplyEventIdempotentJoin(t *testing.T) {
	view := NewSessionView()
	event := joinedEvent("stu-1", "Mia", time.Now())

	require.True(t, view.ApplyEvent(event))
	require.False(t, view.ApplyEvent(event))

	students := view.Students()
	require.Len(t, students, 1)
	require.Equal(t, "Mia", students[0].Name)
	require.Equal(t, "active", students[0].Status)
	require.False(t, students[0].Confirmed)
}

func TestApplyEventJoinReplayDoesNotRegressStatus(t *testing.T) {
	view := NewSessionView()
	now := time.Now()

	view.ApplyEvent(joinedEvent("stu-1", "Mia", now))
	view.ApplyEvent(Event{
		Type:      EventStudentSubmitted,
		SessionID: "sess-1",
		StudentID: "stu-1",
		SentAt:    now.Add(time.Minute),
	})

	// A redelivered join event must not drag the student back to active.
	require.False(t, view.ApplyEvent(joinedEvent("stu-1", "Mia", now)))

	got, ok := view.Get("stu-1")
	require.True(t, ok)
	require.Equal(t, "ready_for_feedback", got.Status)
}

func TestApplyEventFeedbackReady(t *testing.T) {
	view := NewSessionView()
	now := time.Now()

	view.ApplyEvent(joinedEvent("stu-1", "Mia", now))
	require.True(t, view.ApplyEvent(Event{
		Type:      EventFeedbackReady,
		SessionID: "sess-1",
		StudentID: "stu-1",
		SentAt:    now.Add(time.Minute),
	}))

	got, ok := view.Get("stu-1")
	require.True(t, ok)
	require.Equal(t, "feedback_ready", got.Status)
	require.True(t, got.HasFeedback)
}

func TestApplyEventStaleSnapshotIgnored(t *testing.T) {
	view := NewSessionView()
	now := time.Now()

	fresh := joinedEvent("stu-1", "Mia", now)
	view.ApplyEvent(fresh)

	stale := joinedEvent("stu-1", "Mia (old)", now.Add(-time.Minute))
	require.False(t, view.ApplyEvent(stale))

	got, ok := view.Get("stu-1")
	require.True(t, ok)
	require.Equal(t, "Mia", got.Name)
}

func TestReconcileAuthoritativeWins(t *testing.T) {
	now := time.Now()
	local := []StudentView{
		{Snapshot: Snapshot{ID: "stu-1", Name: "Mia", Status: "active", UpdatedAt: now}},
		{Snapshot: Snapshot{ID: "stu-2", Name: "Ghost", Status: "active", UpdatedAt: now}},
	}
	authoritative := []Snapshot{
		{ID: "stu-1", Name: "Mia", Status: "submitted", RevisionCount: 1, UpdatedAt: now.Add(time.Second)},
		{ID: "stu-3", Name: "Noor", Status: "active", UpdatedAt: now},
	}

	merged := Reconcile(authoritative, local)

	require.Len(t, merged, 2)
	require.Equal(t, "stu-1", merged[0].ID)
	require.Equal(t, "submitted", merged[0].Status)
	require.Equal(t, 1, merged[0].RevisionCount)
	require.True(t, merged[0].Confirmed)

	// stu-2 was never confirmed by the server and the poll omits it: dropped.
	require.Equal(t, "stu-3", merged[1].ID)
}

func TestReconcileKeepsLocalOnlyPreview(t *testing.T) {
	local := []StudentView{
		{Snapshot: Snapshot{ID: "stu-1", Status: "ready_for_feedback", ContentPreview: "My essay opens with..."}},
	}
	authoritative := []Snapshot{
		{ID: "stu-1", Status: "ready_for_feedback"},
	}

	merged := Reconcile(authoritative, local)

	require.Len(t, merged, 1)
	require.Equal(t, "My essay opens with...", merged[0].ContentPreview)
}

func TestApplyAuthoritativeRebuildsView(t *testing.T) {
	view := NewSessionView()
	now := time.Now()

	view.ApplyEvent(joinedEvent("stu-1", "Mia", now))
	view.ApplyEvent(joinedEvent("stu-2", "Optimistic", now))

	view.ApplyAuthoritative([]Snapshot{
		{ID: "stu-1", Name: "Mia", Status: "ready_for_feedback", UpdatedAt: now.Add(time.Second)},
	})

	students := view.Students()
	require.Len(t, students, 1)
	require.Equal(t, "stu-1", students[0].ID)
	require.Equal(t, "ready_for_feedback", students[0].Status)
	require.True(t, students[0].Confirmed)

	_, ok := view.Get("stu-2")
	require.False(t, ok)
}
