package dto

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/quill-go-api/internal/feedback"
	"github.com/noah-isme/quill-go-api/internal/models"
	syncpkg "github.com/noah-isme/quill-go-api/internal/sync"
)

// JoinRequest is sent by a student entering a session via task code.
type JoinRequest struct {
	TaskCode string `json:"task_code" validate:"required,min=4,max=12"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
}

// SubmitRequest carries the student's written work.
type SubmitRequest struct {
	Content        string `json:"content" validate:"required,min=1"`
	ElapsedSeconds int    `json:"elapsed_seconds" validate:"gte=0"`
}

// SelectNextStepRequest records which next step the student picked.
type SelectNextStepRequest struct {
	Step feedback.NextStep `json:"step" validate:"required"`
}

// ApproveRequest releases reviewed feedback back to the student.
type ApproveRequest struct {
	Mastered bool `json:"mastered"`
}

// EditFeedbackRequest replaces the generated feedback before release.
type EditFeedbackRequest struct {
	Feedback feedback.Session `json:"feedback" validate:"required"`
}

// BatchGenerateRequest triggers generation for several students at once.
type BatchGenerateRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid4"`
}

// SubmissionResponse serializes a student's current work product.
type SubmissionResponse struct {
	Content          string             `json:"content"`
	PreviousContent  string             `json:"previous_content,omitempty"`
	ElapsedSeconds   int                `json:"elapsed_seconds"`
	RevisionCount    int                `json:"revision_count"`
	RevisionsLeft    int                `json:"revisions_left"`
	SelectedNextStep *feedback.NextStep `json:"selected_next_step,omitempty"`
	Feedback         *feedback.Session  `json:"feedback,omitempty"`
	Warnings         []feedback.Warning `json:"warnings,omitempty"`
	SubmittedAt      time.Time          `json:"submitted_at"`
	ApprovedBy       *uint              `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time         `json:"approved_at,omitempty"`
}

// StudentResponse serializes a session participant.
type StudentResponse struct {
	ID          string               `json:"id"`
	SessionID   string               `json:"session_id"`
	Name        string               `json:"name"`
	Status      models.StudentStatus `json:"status"`
	StatusLabel string               `json:"status_label"`
	StatusTone  string               `json:"status_tone"`
	JoinedAt    time.Time            `json:"joined_at"`
	Submission  *SubmissionResponse  `json:"submission,omitempty"`
}

// TaskLite summarizes a task for session payloads.
type TaskLite struct {
	ID       uint              `json:"id"`
	Title    string            `json:"title"`
	Prompt   string            `json:"prompt"`
	Criteria []string          `json:"criteria"`
	Status   models.TaskStatus `json:"status"`
	TaskCode string            `json:"task_code"`
}

// JoinResponse is returned to a student after joining.
type JoinResponse struct {
	Student StudentResponse `json:"student"`
	Session SessionLite     `json:"session"`
	Task    TaskLite        `json:"task"`
}

// SessionLite summarizes a session.
type SessionLite struct {
	ID        string     `json:"id"`
	Live      bool       `json:"live"`
	Ephemeral bool       `json:"ephemeral"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DashboardResponse aggregates one session for the teacher view.
type DashboardResponse struct {
	Session  SessionLite       `json:"session"`
	Task     TaskLite          `json:"task"`
	Students []StudentResponse `json:"students"`
	Counts   DashboardCounts   `json:"counts"`
}

// DashboardCounts summarizes student statuses for the header strip.
type DashboardCounts struct {
	Total            int `json:"total"`
	ReadyForFeedback int `json:"ready_for_feedback"`
	AwaitingReview   int `json:"awaiting_review"`
	Completed        int `json:"completed"`
}

// BatchGenerateResult reports the outcome for one student in a batch.
type BatchGenerateResult struct {
	StudentID string `json:"student_id"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// BatchGenerateResponse tallies a batch generation run. The batch is not
// atomic; failed students stay untouched and may be retried manually.
type BatchGenerateResponse struct {
	Requested int                   `json:"requested"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Results   []BatchGenerateResult `json:"results"`
}

// NewSubmissionResponse converts the model, decoding the feedback payload and
// classifying it against the task's success criteria when present.
func NewSubmissionResponse(submission models.Submission, criteria []string) *SubmissionResponse {
	response := &SubmissionResponse{
		Content:         submission.Content,
		PreviousContent: submission.PreviousContent,
		ElapsedSeconds:  submission.ElapsedSeconds,
		RevisionCount:   submission.RevisionCount,
		RevisionsLeft:   models.MaxRevisions - submission.RevisionCount,
		SubmittedAt:     submission.SubmittedAt,
		ApprovedBy:      submission.ApprovedBy,
		ApprovedAt:      submission.ApprovedAt,
	}

	if len(submission.SelectedNextStep) > 0 {
		var step feedback.NextStep
		if err := json.Unmarshal(submission.SelectedNextStep, &step); err == nil {
			response.SelectedNextStep = &step
		}
	}

	if submission.HasFeedback() {
		var fs feedback.Session
		if err := json.Unmarshal(submission.Feedback, &fs); err == nil {
			response.Feedback = &fs
			response.Warnings = feedback.Validate(fs, criteria)
		}
	}

	return response
}

// NewStudentResponse converts the model.
func NewStudentResponse(student models.Student, criteria []string) StudentResponse {
	response := StudentResponse{
		ID:          student.ID,
		SessionID:   student.SessionID,
		Name:        student.Name,
		Status:      student.Status,
		StatusLabel: student.Status.Label(),
		StatusTone:  student.Status.Tone(),
		JoinedAt:    student.JoinedAt,
	}
	if student.Submission != nil {
		response.Submission = NewSubmissionResponse(*student.Submission, criteria)
	}
	return response
}

// NewTaskLite converts the model.
func NewTaskLite(task models.Task) TaskLite {
	return TaskLite{
		ID:       task.ID,
		Title:    task.Title,
		Prompt:   task.Prompt,
		Criteria: task.CriteriaList(),
		Status:   task.Status,
		TaskCode: task.TaskCode,
	}
}

// NewSessionLite converts the model.
func NewSessionLite(session models.Session) SessionLite {
	return SessionLite{
		ID:        session.ID,
		Live:      session.Live,
		Ephemeral: session.Ephemeral,
		ExpiresAt: session.ExpiresAt,
	}
}

// NewStudentSnapshot builds the slim view pushed over the sync channel.
func NewStudentSnapshot(student models.Student) *syncpkg.Snapshot {
	snapshot := &syncpkg.Snapshot{
		ID:        student.ID,
		Name:      student.Name,
		Status:    string(student.Status),
		JoinedAt:  student.JoinedAt,
		UpdatedAt: student.UpdatedAt,
	}
	if student.Submission != nil {
		snapshot.RevisionCount = student.Submission.RevisionCount
		snapshot.HasFeedback = student.Submission.HasFeedback()
		snapshot.ContentPreview = contentPreview(student.Submission.Content)
	}
	return snapshot
}

// contentPreview shortens a submission for the push snapshot. The cut lands
// on a rune boundary so multi-byte text stays valid JSON.
func contentPreview(content string) string {
	const limit = 140
	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) <= limit {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:limit])
}

// SyncConfig carries the polling cadence the server wants clients to use.
// It rides the response meta on the poll endpoints so interval changes
// reach clients without a new build.
type SyncConfig struct {
	PollIntervalSeconds    int `json:"poll_interval_seconds"`
	MaxConsecutiveFailures int `json:"max_consecutive_failures"`
}
