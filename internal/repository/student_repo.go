package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/quill-go-api/internal/models"
)

// StudentRepository defines data operations for students and their single
// submission record.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id string) (models.Student, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Student, error)
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
	SaveSubmission(ctx context.Context, submission *models.Submission) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates the repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Student{}).Preload("Submission")
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (models.Student, error) {
	var student models.Student
	if err := r.baseQuery(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Student, error) {
	var students []models.Student
	if err := r.baseQuery(ctx).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	return r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).
		Update("status", status).Error
}

// SaveSubmission upserts the one submission row a student owns.
func (r *studentRepository) SaveSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID != 0 {
		return r.db.WithContext(ctx).Save(submission).Error
	}

	var existing models.Submission
	err := r.db.WithContext(ctx).
		Where("student_id = ?", submission.StudentID).
		First(&existing).Error
	switch {
	case err == nil:
		submission.ID = existing.ID
		submission.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(submission).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(submission).Error
	default:
		return err
	}
}
