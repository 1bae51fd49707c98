package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/quill-go-api/internal/models"
)

// SessionRepository defines data operations for live sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	GetLiveByTask(ctx context.Context, taskID uint) (models.Session, error)
	EndLive(ctx context.Context, id string) error
	SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository instantiates the repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Session{}).
		Preload("Task").
		Preload("Students").
		Preload("Students.Submission")
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (models.Session, error) {
	var session models.Session
	if err := r.baseQuery(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) GetLiveByTask(ctx context.Context, taskID uint) (models.Session, error) {
	var session models.Session
	if err := r.baseQuery(ctx).
		Where("task_id = ?", taskID).
		Where("live = ?", true).
		Order("created_at DESC").
		First(&session).Error; err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) EndLive(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).
		Update("live", false).Error
}

func (r *sessionRepository) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).
		Update("expires_at", expiresAt).Error
}
