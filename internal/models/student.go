package models

import (
	"time"

	"gorm.io/datatypes"
)

// MaxRevisions caps how many times a student may revise one submission.
const MaxRevisions = 3

// Student is a session-scoped participant. A student belongs to exactly one
// session and carries at most one submission at a time.
type Student struct {
	ID         string        `gorm:"primaryKey;size:36" json:"id"`
	SessionID  string        `gorm:"size:36;index;not null" json:"session_id"`
	Name       string        `gorm:"size:255;not null" json:"name"`
	Status     StudentStatus `gorm:"size:32;not null;default:active" json:"status"`
	JoinedAt   time.Time     `json:"joined_at"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Submission *Submission   `gorm:"foreignKey:StudentID" json:"submission,omitempty"`
}

// Submission is the student's current work product. Revision replaces content
// in place rather than appending; the prior text survives only in
// PreviousContent for diffing.
type Submission struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	StudentID        string         `gorm:"size:36;uniqueIndex;not null" json:"student_id"`
	TaskID           uint           `gorm:"index;not null" json:"task_id"`
	Content          string         `gorm:"type:text" json:"content"`
	PreviousContent  string         `gorm:"type:text" json:"previous_content"`
	ElapsedSeconds   int            `gorm:"not null;default:0" json:"elapsed_seconds"`
	RevisionCount    int            `gorm:"not null;default:0" json:"revision_count"`
	SelectedNextStep datatypes.JSON `gorm:"type:json" json:"selected_next_step"`
	Feedback         datatypes.JSON `gorm:"type:json" json:"feedback"`
	SubmittedAt      time.Time      `json:"submitted_at"`
	ApprovedBy       *uint          `json:"approved_by"`
	ApprovedAt       *time.Time     `json:"approved_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasFeedback reports whether generated feedback is attached.
func (s Submission) HasFeedback() bool {
	return len(s.Feedback) > 0
}

// CanRevise reports whether the revision cap still allows another pass.
func (s Submission) CanRevise() bool {
	return s.RevisionCount < MaxRevisions
}
