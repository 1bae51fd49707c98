package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/quill-go-api/internal/dto"
	"github.com/noah-isme/quill-go-api/internal/feedback"
	"github.com/noah-isme/quill-go-api/internal/models"
	"github.com/noah-isme/quill-go-api/internal/repository"
	syncpkg "github.com/noah-isme/quill-go-api/internal/sync"
	"github.com/noah-isme/quill-go-api/pkg/ai"
)

// ErrTaskNotFound indicates the task code or id resolved to nothing.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskInactive indicates the task is not open for joining.
var ErrTaskInactive = errors.New("task is not active")

// ErrStudentNotFound indicates the student id resolved to nothing.
var ErrStudentNotFound = errors.New("student not found")

// ErrSessionNotFound indicates the session id resolved to nothing.
var ErrSessionNotFound = errors.New("session not found")

// ErrRevisionLimitReached indicates the student already used all revisions.
// The attempted revision is a no-op; state is unchanged.
var ErrRevisionLimitReached = errors.New("revision limit reached")

// ErrGenerationFailed wraps an upstream AI failure. The student reverts to
// ready_for_feedback and the ledger is refunded.
var ErrGenerationFailed = errors.New("feedback generation failed")

// EventPublisher fans session events out to connected clients. Delivery is
// best effort; the polling fallback covers losses.
type EventPublisher interface {
	Publish(ctx context.Context, event syncpkg.Event)
}

// SessionService is the orchestrator for the live writing session: it owns
// every student status transition and is the only component that talks to
// persistence, the AI generator, and the push transport.
type SessionService interface {
	ResolveTask(ctx context.Context, code string) (dto.TaskLite, error)
	Join(ctx context.Context, payload dto.JoinRequest) (dto.JoinResponse, error)
	Submit(ctx context.Context, studentID string, payload dto.SubmitRequest) (dto.StudentResponse, error)
	Generate(ctx context.Context, teacherID uint, studentID string) (dto.StudentResponse, error)
	GenerateBatch(ctx context.Context, teacherID uint, payload dto.BatchGenerateRequest) (dto.BatchGenerateResponse, error)
	Approve(ctx context.Context, teacherID uint, studentID string, payload dto.ApproveRequest) (dto.StudentResponse, error)
	EditFeedback(ctx context.Context, teacherID uint, studentID string, payload dto.EditFeedbackRequest) (dto.StudentResponse, error)
	SelectNextStep(ctx context.Context, studentID string, payload dto.SelectNextStepRequest) (dto.StudentResponse, error)
	ReviseSubmit(ctx context.Context, studentID string, payload dto.SubmitRequest) (dto.StudentResponse, error)
	MarkCompleted(ctx context.Context, studentID string) (dto.StudentResponse, error)
	StudentState(ctx context.Context, studentID string) (dto.StudentResponse, error)
	Dashboard(ctx context.Context, sessionID string) (dto.DashboardResponse, error)
}

type sessionService struct {
	tasks     repository.TaskRepository
	sessions  repository.SessionRepository
	students  repository.StudentRepository
	credits   CreditService
	generator ai.Generator
	publisher EventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSessionService constructs the orchestrator.
func NewSessionService(
	tasks repository.TaskRepository,
	sessions repository.SessionRepository,
	students repository.StudentRepository,
	credits CreditService,
	generator ai.Generator,
	publisher EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) SessionService {
	return &sessionService{
		tasks:     tasks,
		sessions:  sessions,
		students:  students,
		credits:   credits,
		generator: generator,
		publisher: publisher,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "session_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/quill-go-api/internal/service"),
		now:       time.Now,
	}
}

// ResolveTask previews a task by join code so the client can show the
// prompt before the student commits a name.
func (s *sessionService) ResolveTask(ctx context.Context, code string) (dto.TaskLite, error) {
	task, err := s.tasks.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskLite{}, ErrTaskNotFound
		}
		return dto.TaskLite{}, err
	}
	if !task.IsActive() {
		return dto.TaskLite{}, ErrTaskInactive
	}
	return dto.NewTaskLite(task), nil
}

func (s *sessionService) Join(ctx context.Context, payload dto.JoinRequest) (dto.JoinResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.JoinResponse{}, err
	}

	code := strings.ToUpper(strings.TrimSpace(payload.TaskCode))
	task, err := s.tasks.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.JoinResponse{}, ErrTaskNotFound
		}
		return dto.JoinResponse{}, err
	}

	if !task.IsActive() {
		return dto.JoinResponse{}, ErrTaskInactive
	}

	session, err := s.liveSession(ctx, task)
	if err != nil {
		return dto.JoinResponse{}, err
	}

	student := models.Student{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Name:      strings.TrimSpace(payload.Name),
		Status:    models.StatusActive,
		JoinedAt:  s.now(),
	}
	if err := s.students.Create(ctx, &student); err != nil {
		return dto.JoinResponse{}, err
	}

	s.publish(ctx, syncpkg.Event{
		Type:      syncpkg.EventStudentJoined,
		SessionID: session.ID,
		TeacherID: task.TeacherID,
		StudentID: student.ID,
		Student:   dto.NewStudentSnapshot(student),
	})

	return dto.JoinResponse{
		Student: dto.NewStudentResponse(student, task.CriteriaList()),
		Session: dto.NewSessionLite(session),
		Task:    dto.NewTaskLite(task),
	}, nil
}

// liveSession returns the task's live session, creating one when no student
// has joined yet.
func (s *sessionService) liveSession(ctx context.Context, task models.Task) (models.Session, error) {
	session, err := s.sessions.GetLiveByTask(ctx, task.ID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Session{}, err
	}

	session = models.Session{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		TeacherID: task.TeacherID,
		Live:      true,
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		return models.Session{}, err
	}
	if err := s.tasks.SetLiveSession(ctx, task.ID, &session.ID); err != nil {
		s.logger.Warn().Err(err).Uint("task_id", task.ID).Msg("failed to link live session to task")
	}
	return session, nil
}

func (s *sessionService) Submit(ctx context.Context, studentID string, payload dto.SubmitRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if student.Status.Terminal() {
		return s.noop(student, task, "submit after completion")
	}
	// The overwrite below clears any attached feedback, so it must not run
	// unless the status change is legal too. A replayed submit against a
	// student awaiting review would otherwise half-apply.
	if !student.Status.CanTransitionTo(models.StatusReadyForFeedback) {
		return s.noop(student, task, "submit outside writing statuses")
	}

	submission := models.Submission{
		StudentID:      student.ID,
		TaskID:         task.ID,
		Content:        s.cleanContent(payload.Content),
		ElapsedSeconds: payload.ElapsedSeconds,
		SubmittedAt:    s.now(),
	}
	if student.Submission != nil {
		// Idempotent overwrite: the revision counter survives, feedback does not.
		submission.ID = student.Submission.ID
		submission.RevisionCount = student.Submission.RevisionCount
		submission.PreviousContent = student.Submission.PreviousContent
	}

	if err := s.students.SaveSubmission(ctx, &submission); err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.transition(ctx, &student, models.StatusReadyForFeedback); err != nil {
		return dto.StudentResponse{}, err
	}
	student.Submission = &submission

	s.publish(ctx, syncpkg.Event{
		Type:      syncpkg.EventStudentSubmitted,
		SessionID: student.SessionID,
		TeacherID: task.TeacherID,
		StudentID: student.ID,
		Student:   dto.NewStudentSnapshot(student),
	})

	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

func (s *sessionService) Generate(ctx context.Context, teacherID uint, studentID string) (dto.StudentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "session.generate", trace.WithAttributes(
		attribute.String("student_id", studentID),
		attribute.Int64("teacher_id", int64(teacherID)),
	))
	defer span.End()

	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}

	if student.Status != models.StatusReadyForFeedback {
		return s.noop(student, task, "generate outside ready_for_feedback")
	}
	if student.Submission == nil {
		return s.noop(student, task, "generate without submission")
	}

	allowed, err := s.credits.CheckAndReserve(ctx, teacherID)
	if err != nil {
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}
	if !allowed {
		span.SetStatus(codes.Error, "quota_exhausted")
		return dto.StudentResponse{}, ErrQuotaExhausted
	}

	if err := s.transition(ctx, &student, models.StatusGenerating); err != nil {
		_ = s.credits.Release(ctx, teacherID)
		return dto.StudentResponse{}, err
	}

	// The generation call must survive a client that navigates away; its
	// result lands in the store and reaches the student on the next poll.
	generated, genErr := s.generator.Generate(context.WithoutCancel(ctx), ai.GenerationInput{
		TaskTitle:     task.Title,
		Prompt:        task.Prompt,
		Criteria:      task.CriteriaList(),
		Content:       student.Submission.Content,
		RevisionCount: student.Submission.RevisionCount,
	})
	if genErr != nil {
		if err := s.credits.Release(ctx, teacherID); err != nil {
			s.logger.Error().Err(err).Uint("teacher_id", teacherID).Msg("failed to refund generation credit")
		}
		if err := s.transition(ctx, &student, models.StatusReadyForFeedback); err != nil {
			s.logger.Error().Err(err).Str("student_id", student.ID).Msg("failed to revert status after generation failure")
		}
		span.RecordError(genErr)
		span.SetStatus(codes.Error, "generation_failed")
		return dto.StudentResponse{}, errors.Join(ErrGenerationFailed, genErr)
	}

	encoded, err := json.Marshal(generated)
	if err != nil {
		_ = s.credits.Release(ctx, teacherID)
		_ = s.transition(ctx, &student, models.StatusReadyForFeedback)
		span.RecordError(err)
		return dto.StudentResponse{}, errors.Join(ErrGenerationFailed, err)
	}

	student.Submission.Feedback = datatypes.JSON(encoded)
	if err := s.students.SaveSubmission(ctx, student.Submission); err != nil {
		_ = s.credits.Release(ctx, teacherID)
		_ = s.transition(ctx, &student, models.StatusReadyForFeedback)
		span.RecordError(err)
		return dto.StudentResponse{}, err
	}

	if err := s.transition(ctx, &student, models.StatusSubmitted); err != nil {
		return dto.StudentResponse{}, err
	}
	s.credits.Commit(ctx, teacherID)

	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

// GenerateBatch runs Generate per student. It is deliberately not atomic:
// each student's generate/ledger pair succeeds or fails on its own, and the
// caller decides whether to retry the failed subset.
func (s *sessionService) GenerateBatch(ctx context.Context, teacherID uint, payload dto.BatchGenerateRequest) (dto.BatchGenerateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BatchGenerateResponse{}, err
	}

	response := dto.BatchGenerateResponse{
		Requested: len(payload.StudentIDs),
		Results:   make([]dto.BatchGenerateResult, 0, len(payload.StudentIDs)),
	}
	for _, studentID := range payload.StudentIDs {
		result := dto.BatchGenerateResult{StudentID: studentID}
		if _, err := s.Generate(ctx, teacherID, studentID); err != nil {
			result.Error = err.Error()
			response.Failed++
		} else {
			result.Succeeded = true
			response.Succeeded++
		}
		response.Results = append(response.Results, result)
	}
	return response, nil
}

func (s *sessionService) Approve(ctx context.Context, teacherID uint, studentID string, payload dto.ApproveRequest) (dto.StudentResponse, error) {
	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if student.Submission == nil || !student.Submission.HasFeedback() {
		return s.noop(student, task, "approve without feedback")
	}
	if student.Status.Terminal() {
		return s.noop(student, task, "approve after completion")
	}

	// Decide the target status up front: a replayed approve whose transition
	// would no-op must not restamp the approval or flip the mastery flag.
	next := models.StatusFeedbackReady
	if payload.Mastered {
		next = models.StatusCompleted
	}
	if !student.Status.CanTransitionTo(next) {
		return s.noop(student, task, "approve not legal for status")
	}

	if payload.Mastered {
		var fs feedback.Session
		if err := json.Unmarshal(student.Submission.Feedback, &fs); err == nil {
			fs.Mastered = true
			if encoded, err := json.Marshal(fs); err == nil {
				student.Submission.Feedback = datatypes.JSON(encoded)
			}
		}
	}

	approvedAt := s.now()
	student.Submission.ApprovedBy = &teacherID
	student.Submission.ApprovedAt = &approvedAt
	if err := s.students.SaveSubmission(ctx, student.Submission); err != nil {
		return dto.StudentResponse{}, err
	}

	if err := s.transition(ctx, &student, next); err != nil {
		return dto.StudentResponse{}, err
	}

	s.publish(ctx, syncpkg.Event{
		Type:      syncpkg.EventFeedbackReady,
		SessionID: student.SessionID,
		TeacherID: task.TeacherID,
		StudentID: student.ID,
		Student:   dto.NewStudentSnapshot(student),
	})

	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

// EditFeedback lets the teacher reshape generated feedback before releasing
// it. Edits never touch the credit ledger.
func (s *sessionService) EditFeedback(ctx context.Context, teacherID uint, studentID string, payload dto.EditFeedbackRequest) (dto.StudentResponse, error) {
	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if student.Submission == nil || !student.Submission.HasFeedback() {
		return s.noop(student, task, "edit without feedback")
	}
	if student.Status.Terminal() {
		return s.noop(student, task, "edit after completion")
	}

	encoded, err := json.Marshal(payload.Feedback)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	student.Submission.Feedback = datatypes.JSON(encoded)
	if err := s.students.SaveSubmission(ctx, student.Submission); err != nil {
		return dto.StudentResponse{}, err
	}

	s.logger.Info().Str("student_id", student.ID).Uint("teacher_id", teacherID).Msg("feedback edited before release")
	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

func (s *sessionService) SelectNextStep(ctx context.Context, studentID string, payload dto.SelectNextStepRequest) (dto.StudentResponse, error) {
	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if student.Status != models.StatusFeedbackReady {
		return s.noop(student, task, "next step outside feedback_ready")
	}
	if student.Submission == nil {
		return s.noop(student, task, "next step without submission")
	}

	encoded, err := json.Marshal(payload.Step)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	student.Submission.SelectedNextStep = datatypes.JSON(encoded)
	if err := s.students.SaveSubmission(ctx, student.Submission); err != nil {
		return dto.StudentResponse{}, err
	}

	if err := s.transition(ctx, &student, models.StatusRevising); err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

func (s *sessionService) ReviseSubmit(ctx context.Context, studentID string, payload dto.SubmitRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if student.Status != models.StatusRevising {
		return s.noop(student, task, "revise outside revising")
	}
	if student.Submission == nil {
		return s.noop(student, task, "revise without submission")
	}
	if !student.Submission.CanRevise() {
		return dto.StudentResponse{}, ErrRevisionLimitReached
	}

	student.Submission.PreviousContent = student.Submission.Content
	student.Submission.Content = s.cleanContent(payload.Content)
	student.Submission.ElapsedSeconds = payload.ElapsedSeconds
	student.Submission.RevisionCount++
	student.Submission.Feedback = nil
	student.Submission.SubmittedAt = s.now()
	if err := s.students.SaveSubmission(ctx, student.Submission); err != nil {
		return dto.StudentResponse{}, err
	}

	if err := s.transition(ctx, &student, models.StatusReadyForFeedback); err != nil {
		return dto.StudentResponse{}, err
	}

	s.publish(ctx, syncpkg.Event{
		Type:      syncpkg.EventStudentSubmitted,
		SessionID: student.SessionID,
		TeacherID: task.TeacherID,
		StudentID: student.ID,
		Student:   dto.NewStudentSnapshot(student),
	})

	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

func (s *sessionService) MarkCompleted(ctx context.Context, studentID string) (dto.StudentResponse, error) {
	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	// Duplicate completion signals arrive from retried sync; absorb them.
	if student.Status.Terminal() {
		return dto.NewStudentResponse(student, task.CriteriaList()), nil
	}
	if student.Status != models.StatusFeedbackReady {
		return s.noop(student, task, "complete outside feedback_ready")
	}

	if err := s.transition(ctx, &student, models.StatusCompleted); err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

func (s *sessionService) StudentState(ctx context.Context, studentID string) (dto.StudentResponse, error) {
	student, task, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

func (s *sessionService) Dashboard(ctx context.Context, sessionID string) (dto.DashboardResponse, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DashboardResponse{}, ErrSessionNotFound
		}
		return dto.DashboardResponse{}, err
	}

	criteria := session.Task.CriteriaList()
	students := make([]dto.StudentResponse, 0, len(session.Students))
	counts := dto.DashboardCounts{Total: len(session.Students)}
	for _, student := range session.Students {
		students = append(students, dto.NewStudentResponse(student, criteria))
		switch student.Status {
		case models.StatusReadyForFeedback:
			counts.ReadyForFeedback++
		case models.StatusSubmitted:
			counts.AwaitingReview++
		case models.StatusCompleted:
			counts.Completed++
		}
	}

	return dto.DashboardResponse{
		Session:  dto.NewSessionLite(session),
		Task:     dto.NewTaskLite(session.Task),
		Students: students,
		Counts:   counts,
	}, nil
}

// transition persists a status change after checking the state machine. An
// illegal edge is logged and skipped rather than failing the operation.
func (s *sessionService) transition(ctx context.Context, student *models.Student, next models.StudentStatus) error {
	if !student.Status.CanTransitionTo(next) {
		s.logger.Warn().
			Str("student_id", student.ID).
			Str("from", string(student.Status)).
			Str("to", string(next)).
			Msg("ignoring invalid status transition")
		return nil
	}
	if err := s.students.UpdateStatus(ctx, student.ID, next); err != nil {
		return err
	}
	student.Status = next
	return nil
}

// noop records an attempted operation that is not legal for the student's
// current status. Late and duplicate events are expected, so the caller gets
// the current state back instead of an error.
func (s *sessionService) noop(student models.Student, task models.Task, reason string) (dto.StudentResponse, error) {
	s.logger.Warn().
		Str("student_id", student.ID).
		Str("status", string(student.Status)).
		Str("reason", reason).
		Msg("operation ignored for current status")
	return dto.NewStudentResponse(student, task.CriteriaList()), nil
}

func (s *sessionService) loadStudent(ctx context.Context, studentID string) (models.Student, models.Task, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, models.Task{}, ErrStudentNotFound
		}
		return models.Student{}, models.Task{}, err
	}

	session, err := s.sessions.GetByID(ctx, student.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, models.Task{}, ErrSessionNotFound
		}
		return models.Student{}, models.Task{}, err
	}

	return student, session.Task, nil
}

func (s *sessionService) cleanContent(content string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(content))
}

func (s *sessionService) publish(ctx context.Context, event syncpkg.Event) {
	if s.publisher == nil {
		return
	}
	event.SentAt = s.now().UTC()
	s.publisher.Publish(ctx, event)
}
