package sync

import (
	gosync "sync"
)

// StudentView is one row of a client's local working copy. Confirmed marks
// rows last seen in an authoritative poll response; unconfirmed rows exist
// only because a push event announced them.
type StudentView struct {
	Snapshot
	Confirmed bool
}

// Reconcile merges an authoritative poll response into the local working
// copy. Server-confirmed fields follow last-authoritative-wins; fields only
// the local copy knows (a richer content preview carried by an earlier push
// event) survive the merge. Students the poll fails to list are dropped —
// once an authoritative response is in hand it is trusted over any
// optimistic insertion.
func Reconcile(authoritative []Snapshot, local []StudentView) []StudentView {
	localByID := make(map[string]StudentView, len(local))
	for _, view := range local {
		localByID[view.ID] = view
	}

	merged := make([]StudentView, 0, len(authoritative))
	for _, snapshot := range authoritative {
		view := StudentView{Snapshot: snapshot, Confirmed: true}
		if prior, ok := localByID[snapshot.ID]; ok {
			if view.ContentPreview == "" {
				view.ContentPreview = prior.ContentPreview
			}
		}
		merged = append(merged, view)
	}
	return merged
}

// SessionView is the teacher client's local copy of one session's roster. It
// applies push events optimistically and reconciles against poll responses;
// both operations are idempotent under the duplicate and reordered delivery
// the push channel permits.
type SessionView struct {
	mu       gosync.Mutex
	students map[string]*StudentView
	order    []string
}

// NewSessionView returns an empty local working copy.
func NewSessionView() *SessionView {
	return &SessionView{students: make(map[string]*StudentView)}
}

// ApplyEvent folds a push event into the view immediately, without waiting
// for authoritative confirmation. Applying the same event twice changes
// nothing: students are deduplicated by id. The return value reports whether
// the view changed, which callers use to decide on a background refresh.
func (v *SessionView) ApplyEvent(event Event) bool {
	if event.StudentID == "" {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	existing, ok := v.students[event.StudentID]
	if !ok {
		view := &StudentView{}
		if event.Student != nil {
			view.Snapshot = *event.Student
		}
		view.ID = event.StudentID
		applyEventStatus(view, event)
		v.students[event.StudentID] = view
		v.order = append(v.order, event.StudentID)
		return true
	}

	changed := false
	if event.Student != nil && event.Student.UpdatedAt.After(existing.UpdatedAt) {
		preview := existing.ContentPreview
		confirmed := existing.Confirmed
		existing.Snapshot = *event.Student
		existing.Confirmed = confirmed
		if existing.ContentPreview == "" {
			existing.ContentPreview = preview
		}
		changed = true
	}
	if applyEventStatus(existing, event) {
		changed = true
	}
	return changed
}

func applyEventStatus(view *StudentView, event Event) bool {
	var implied string
	switch event.Type {
	case EventStudentJoined:
		implied = "active"
		if view.Status != "" {
			// A join replay must not regress a student who moved on.
			return false
		}
	case EventStudentSubmitted:
		implied = "ready_for_feedback"
	case EventFeedbackReady:
		implied = "feedback_ready"
		view.HasFeedback = true
	default:
		return false
	}
	if view.Status == implied {
		return false
	}
	view.Status = implied
	return true
}

// ApplyAuthoritative reconciles a successful poll response into the view.
func (v *SessionView) ApplyAuthoritative(snapshots []Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	merged := Reconcile(snapshots, v.snapshotLocked())

	v.students = make(map[string]*StudentView, len(merged))
	v.order = v.order[:0]
	for i := range merged {
		view := merged[i]
		v.students[view.ID] = &view
		v.order = append(v.order, view.ID)
	}
}

// Students returns the rows in stable order.
func (v *SessionView) Students() []StudentView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Get returns one row by student id.
func (v *SessionView) Get(studentID string) (StudentView, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	view, ok := v.students[studentID]
	if !ok {
		return StudentView{}, false
	}
	return *view, true
}

func (v *SessionView) snapshotLocked() []StudentView {
	views := make([]StudentView, 0, len(v.order))
	for _, id := range v.order {
		if view, ok := v.students[id]; ok {
			views = append(views, *view)
		}
	}
	return views
}
