package models

import "time"

// Ledger tracks a teacher's AI-generation usage against a monthly cap. One
// row per teacher; Used is mutated only by successful generation calls.
type Ledger struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TeacherID    uint      `gorm:"uniqueIndex;not null" json:"teacher_id"`
	Used         int       `gorm:"not null;default:0" json:"used"`
	MonthlyLimit int       `gorm:"not null" json:"monthly_limit"`
	Period       string    `gorm:"size:7;not null" json:"period"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Remaining returns the credits left this period, clamped at zero.
func (l Ledger) Remaining() int {
	remaining := l.MonthlyLimit - l.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}
