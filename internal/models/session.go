package models

import "time"

// Session is one live, joinable run of a task. It is created implicitly when
// the first student joins a task without a live session.
type Session struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	TaskID    uint       `gorm:"index;not null" json:"task_id"`
	TeacherID uint       `gorm:"index;not null" json:"teacher_id"`
	Live      bool       `gorm:"not null;default:true" json:"live"`
	Ephemeral bool       `gorm:"not null;default:false" json:"ephemeral"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Task      Task       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"task"`
	Students  []Student  `gorm:"foreignKey:SessionID" json:"students"`
}
