package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TaskStatus marks whether a task is currently joinable.
type TaskStatus string

const (
	// TaskStatusActive means students may join sessions for the task.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusInactive means the task is hidden from the join flow.
	TaskStatusInactive TaskStatus = "inactive"
)

// Task is a writing assignment template owned by a teacher.
type Task struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	TeacherID     uint           `gorm:"index;not null" json:"teacher_id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	Prompt        string         `gorm:"type:text" json:"prompt"`
	Criteria      datatypes.JSON `gorm:"type:json" json:"criteria"`
	Status        TaskStatus     `gorm:"size:16;not null;default:active" json:"status"`
	TaskCode      string         `gorm:"size:12;uniqueIndex;not null" json:"task_code"`
	FolderID      *uint          `gorm:"index" json:"folder_id"`
	LiveSessionID *string        `gorm:"size:36" json:"live_session_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsActive reports whether students may currently join the task.
func (t Task) IsActive() bool {
	return t.Status == TaskStatusActive
}

// CriteriaList decodes the stored success criteria.
func (t Task) CriteriaList() []string {
	if len(t.Criteria) == 0 {
		return nil
	}
	var criteria []string
	if err := json.Unmarshal(t.Criteria, &criteria); err != nil {
		return nil
	}
	return criteria
}

// SetCriteria encodes the success criteria for storage.
func (t *Task) SetCriteria(criteria []string) error {
	encoded, err := json.Marshal(criteria)
	if err != nil {
		return err
	}
	t.Criteria = datatypes.JSON(encoded)
	return nil
}

// Folder groups tasks within a teacher's workspace.
type Folder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeacherID uint      `gorm:"index;not null" json:"teacher_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
