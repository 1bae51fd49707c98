package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/quill-go-api/internal/models"
)

// TaskFilter narrows task listings.
type TaskFilter struct {
	FolderID *uint
	Status   *models.TaskStatus
}

// TaskRepository defines data operations for tasks and folders. Mutations
// that touch a task's status or code also refresh the global task-code index
// so the unauthenticated join flow always sees the same truth teachers do.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uint) (models.Task, error)
	GetByCode(ctx context.Context, code string) (models.Task, error)
	ListByTeacher(ctx context.Context, teacherID uint, filter TaskFilter) ([]models.Task, error)
	UpdateStatus(ctx context.Context, id uint, status models.TaskStatus) error
	MoveToFolder(ctx context.Context, id uint, folderID *uint) error
	SetLiveSession(ctx context.Context, id uint, sessionID *string) error
}

type taskRepository struct {
	db    *gorm.DB
	index TaskCodeIndex
}

// NewTaskRepository instantiates the repository. The index may be nil when no
// redis deployment exists; lookups then fall through to the database.
func NewTaskRepository(db *gorm.DB, index TaskCodeIndex) TaskRepository {
	return &taskRepository{db: db, index: index}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return err
	}
	r.refreshIndex(ctx, *task)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (r *taskRepository) GetByCode(ctx context.Context, code string) (models.Task, error) {
	if r.index != nil {
		if summary, err := r.index.Get(ctx, code); err == nil {
			return r.GetByID(ctx, summary.TaskID)
		}
	}

	var task models.Task
	if err := r.db.WithContext(ctx).Where("task_code = ?", code).First(&task).Error; err != nil {
		return models.Task{}, err
	}
	r.refreshIndex(ctx, task)
	return task, nil
}

func (r *taskRepository) ListByTeacher(ctx context.Context, teacherID uint, filter TaskFilter) ([]models.Task, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{}).Where("teacher_id = ?", teacherID)

	if filter.FolderID != nil {
		query = query.Where("folder_id = ?", *filter.FolderID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id uint, status models.TaskStatus) error {
	if err := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return err
	}

	task, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.refreshIndex(ctx, task)
	return nil
}

func (r *taskRepository) MoveToFolder(ctx context.Context, id uint, folderID *uint) error {
	return r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).
		Update("folder_id", folderID).Error
}

func (r *taskRepository) SetLiveSession(ctx context.Context, id uint, sessionID *string) error {
	return r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).
		Update("live_session_id", sessionID).Error
}

func (r *taskRepository) refreshIndex(ctx context.Context, task models.Task) {
	if r.index == nil || task.TaskCode == "" {
		return
	}
	_ = r.index.Put(ctx, TaskSummary{
		TaskCode:  task.TaskCode,
		TaskID:    task.ID,
		TeacherID: task.TeacherID,
		Title:     task.Title,
		Status:    task.Status,
	})
}

// FolderRepository defines data operations for task folders.
type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) error
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Folder, error)
	Delete(ctx context.Context, teacherID, id uint) error
}

type folderRepository struct {
	db *gorm.DB
}

// NewFolderRepository instantiates the repository.
func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

func (r *folderRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Folder, error) {
	var folders []models.Folder
	if err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).
		Order("name ASC").Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *folderRepository) Delete(ctx context.Context, teacherID, id uint) error {
	return r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).
		Delete(&models.Folder{}, id).Error
}
