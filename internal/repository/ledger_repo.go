package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/quill-go-api/internal/models"
)

// LedgerRepository defines data operations for the credit ledger. Reserve and
// Release are conditional single-statement updates so the database, not the
// caller, is the serialization point for concurrent generation calls.
type LedgerRepository interface {
	Ensure(ctx context.Context, teacherID uint, monthlyLimit int, period string) (models.Ledger, error)
	Get(ctx context.Context, teacherID uint) (models.Ledger, error)
	Reserve(ctx context.Context, teacherID uint, period string) (bool, error)
	Release(ctx context.Context, teacherID uint) error
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository instantiates the repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Ensure returns the teacher's ledger row, creating it if absent and
// resetting usage when the stored period is stale.
func (r *ledgerRepository) Ensure(ctx context.Context, teacherID uint, monthlyLimit int, period string) (models.Ledger, error) {
	var ledger models.Ledger
	err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).First(&ledger).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		ledger = models.Ledger{TeacherID: teacherID, MonthlyLimit: monthlyLimit, Period: period}
		if err := r.db.WithContext(ctx).Create(&ledger).Error; err != nil {
			return models.Ledger{}, err
		}
		return ledger, nil
	case err != nil:
		return models.Ledger{}, err
	}

	if ledger.Period != period {
		result := r.db.WithContext(ctx).Model(&models.Ledger{}).
			Where("teacher_id = ?", teacherID).
			Where("period = ?", ledger.Period).
			Updates(map[string]interface{}{"used": 0, "period": period})
		if result.Error != nil {
			return models.Ledger{}, result.Error
		}
		return r.Get(ctx, teacherID)
	}

	return ledger, nil
}

func (r *ledgerRepository) Get(ctx context.Context, teacherID uint) (models.Ledger, error) {
	var ledger models.Ledger
	if err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).First(&ledger).Error; err != nil {
		return models.Ledger{}, err
	}
	return ledger, nil
}

// Reserve charges one credit if any remain. The guard lives in the WHERE
// clause, so two concurrent calls against a ledger with one credit left
// cannot both succeed.
func (r *ledgerRepository) Reserve(ctx context.Context, teacherID uint, period string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Ledger{}).
		Where("teacher_id = ?", teacherID).
		Where("period = ?", period).
		Where("used < monthly_limit").
		Update("used", gorm.Expr("used + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release refunds a reservation after a failed generation call.
func (r *ledgerRepository) Release(ctx context.Context, teacherID uint) error {
	return r.db.WithContext(ctx).Model(&models.Ledger{}).
		Where("teacher_id = ?", teacherID).
		Where("used > 0").
		Update("used", gorm.Expr("used - 1")).Error
}
