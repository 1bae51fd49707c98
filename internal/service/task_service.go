package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/quill-go-api/internal/dto"
	"github.com/noah-isme/quill-go-api/internal/models"
	"github.com/noah-isme/quill-go-api/internal/repository"
)

// ErrFolderNotFound indicates the folder id resolved to nothing.
var ErrFolderNotFound = errors.New("folder not found")

// TaskService owns the teacher's task workspace: creation with a unique
// join code, status toggling, and folder organisation.
type TaskService interface {
	Create(ctx context.Context, teacherID uint, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	Get(ctx context.Context, teacherID, taskID uint) (dto.TaskResponse, error)
	List(ctx context.Context, teacherID uint, filter repository.TaskFilter) ([]dto.TaskResponse, error)
	SetStatus(ctx context.Context, teacherID, taskID uint, payload dto.TaskStatusRequest) (dto.TaskResponse, error)
	Move(ctx context.Context, teacherID, taskID uint, payload dto.TaskMoveRequest) (dto.TaskResponse, error)
	EndLiveSession(ctx context.Context, teacherID, taskID uint) (dto.TaskResponse, error)
	CreateFolder(ctx context.Context, teacherID uint, payload dto.FolderCreateRequest) (dto.FolderResponse, error)
	ListFolders(ctx context.Context, teacherID uint) ([]dto.FolderResponse, error)
	DeleteFolder(ctx context.Context, teacherID, folderID uint) error
}

type taskService struct {
	tasks     repository.TaskRepository
	folders   repository.FolderRepository
	sessions  repository.SessionRepository
	retention time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTaskService constructs the task service. Ended sessions are stamped
// with an expiry of now plus retention so reap jobs know when student work
// may be dropped.
func NewTaskService(
	tasks repository.TaskRepository,
	folders repository.FolderRepository,
	sessions repository.SessionRepository,
	retention time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) TaskService {
	return &taskService{
		tasks:     tasks,
		folders:   folders,
		sessions:  sessions,
		retention: retention,
		validator: validate,
		logger:    logger.With().Str("component", "task_service").Logger(),
		now:       time.Now,
	}
}

// codeAlphabet skips characters students misread on a projected screen
// (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

func generateTaskCode() (string, error) {
	var builder strings.Builder
	builder.Grow(codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate task code: %w", err)
		}
		builder.WriteByte(codeAlphabet[n.Int64()])
	}
	return builder.String(), nil
}

func (s *taskService) Create(ctx context.Context, teacherID uint, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	task := models.Task{
		TeacherID: teacherID,
		Title:     strings.TrimSpace(payload.Title),
		Prompt:    strings.TrimSpace(payload.Prompt),
		Status:    models.TaskStatusActive,
		FolderID:  payload.FolderID,
	}
	if err := task.SetCriteria(payload.Criteria); err != nil {
		return dto.TaskResponse{}, err
	}

	// Codes collide rarely at this alphabet size; retry a few times and
	// give up loudly rather than loop forever on an exhausted space.
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		code, err := generateTaskCode()
		if err != nil {
			return dto.TaskResponse{}, err
		}
		task.TaskCode = code
		if err := s.tasks.Create(ctx, &task); err != nil {
			lastErr = err
			continue
		}
		s.logger.Info().Uint("task_id", task.ID).Str("task_code", task.TaskCode).Msg("task created")
		return dto.NewTaskResponse(task), nil
	}
	return dto.TaskResponse{}, fmt.Errorf("create task: %w", lastErr)
}

func (s *taskService) Get(ctx context.Context, teacherID, taskID uint) (dto.TaskResponse, error) {
	task, err := s.ownedTask(ctx, teacherID, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) List(ctx context.Context, teacherID uint, filter repository.TaskFilter) ([]dto.TaskResponse, error) {
	tasks, err := s.tasks.ListByTeacher(ctx, teacherID, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewTaskResponseSlice(tasks), nil
}

func (s *taskService) SetStatus(ctx context.Context, teacherID, taskID uint, payload dto.TaskStatusRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	task, err := s.ownedTask(ctx, teacherID, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if err := s.tasks.UpdateStatus(ctx, task.ID, payload.Status); err != nil {
		return dto.TaskResponse{}, err
	}
	task.Status = payload.Status

	// Deactivating a task closes its live session so stale codes stop
	// admitting students.
	if payload.Status == models.TaskStatusInactive && task.LiveSessionID != nil {
		if err := s.sessions.EndLive(ctx, *task.LiveSessionID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", *task.LiveSessionID).Msg("failed to end live session")
		}
		s.stampExpiry(ctx, *task.LiveSessionID)
		if err := s.tasks.SetLiveSession(ctx, task.ID, nil); err != nil {
			s.logger.Warn().Err(err).Uint("task_id", task.ID).Msg("failed to clear live session ref")
		}
		task.LiveSessionID = nil
	}

	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Move(ctx context.Context, teacherID, taskID uint, payload dto.TaskMoveRequest) (dto.TaskResponse, error) {
	task, err := s.ownedTask(ctx, teacherID, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if err := s.tasks.MoveToFolder(ctx, task.ID, payload.FolderID); err != nil {
		return dto.TaskResponse{}, err
	}
	task.FolderID = payload.FolderID
	return dto.NewTaskResponse(task), nil
}

// EndLiveSession closes the running session for a task without
// deactivating it; the next join mints a fresh session.
func (s *taskService) EndLiveSession(ctx context.Context, teacherID, taskID uint) (dto.TaskResponse, error) {
	task, err := s.ownedTask(ctx, teacherID, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if task.LiveSessionID != nil {
		if err := s.sessions.EndLive(ctx, *task.LiveSessionID); err != nil {
			return dto.TaskResponse{}, err
		}
		s.stampExpiry(ctx, *task.LiveSessionID)
		if err := s.tasks.SetLiveSession(ctx, task.ID, nil); err != nil {
			return dto.TaskResponse{}, err
		}
		task.LiveSessionID = nil
	}
	return dto.NewTaskResponse(task), nil
}

// stampExpiry marks an ended session for retention-based cleanup. Zero
// retention keeps sessions forever.
func (s *taskService) stampExpiry(ctx context.Context, sessionID string) {
	if s.retention <= 0 {
		return
	}
	expiresAt := s.now().Add(s.retention)
	if err := s.sessions.SetExpiry(ctx, sessionID, &expiresAt); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to stamp session expiry")
	}
}

func (s *taskService) CreateFolder(ctx context.Context, teacherID uint, payload dto.FolderCreateRequest) (dto.FolderResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FolderResponse{}, err
	}

	folder := models.Folder{TeacherID: teacherID, Name: strings.TrimSpace(payload.Name)}
	if err := s.folders.Create(ctx, &folder); err != nil {
		return dto.FolderResponse{}, err
	}
	return dto.NewFolderResponse(folder), nil
}

func (s *taskService) ListFolders(ctx context.Context, teacherID uint) ([]dto.FolderResponse, error) {
	folders, err := s.folders.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.FolderResponse, 0, len(folders))
	for _, folder := range folders {
		responses = append(responses, dto.NewFolderResponse(folder))
	}
	return responses, nil
}

func (s *taskService) DeleteFolder(ctx context.Context, teacherID, folderID uint) error {
	if err := s.folders.Delete(ctx, teacherID, folderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFolderNotFound
		}
		return err
	}
	return nil
}

// ownedTask loads a task and enforces teacher ownership. A task belonging
// to another teacher is indistinguishable from a missing one.
func (s *taskService) ownedTask(ctx context.Context, teacherID, taskID uint) (models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	if task.TeacherID != teacherID {
		return models.Task{}, ErrTaskNotFound
	}
	return task, nil
}
