package dto

import (
	"time"

	"github.com/noah-isme/quill-go-api/internal/models"
)

// TaskCreateRequest describes the payload for creating a task.
type TaskCreateRequest struct {
	Title    string   `json:"title" validate:"required,min=1,max=255"`
	Prompt   string   `json:"prompt" validate:"required,min=1"`
	Criteria []string `json:"criteria" validate:"omitempty,dive,min=1"`
	FolderID *uint    `json:"folder_id"`
}

// TaskStatusRequest toggles a task's joinability.
type TaskStatusRequest struct {
	Status models.TaskStatus `json:"status" validate:"required,oneof=active inactive"`
}

// TaskMoveRequest moves a task between folders; a nil folder id removes it
// from any folder.
type TaskMoveRequest struct {
	FolderID *uint `json:"folder_id"`
}

// FolderCreateRequest describes the payload for creating a folder.
type FolderCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// TaskResponse serializes a task for the teacher workspace.
type TaskResponse struct {
	ID            uint              `json:"id"`
	Title         string            `json:"title"`
	Prompt        string            `json:"prompt"`
	Criteria      []string          `json:"criteria"`
	Status        models.TaskStatus `json:"status"`
	TaskCode      string            `json:"task_code"`
	FolderID      *uint             `json:"folder_id,omitempty"`
	LiveSessionID *string           `json:"live_session_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// FolderResponse serializes a folder.
type FolderResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskResponse converts the model.
func NewTaskResponse(task models.Task) TaskResponse {
	return TaskResponse{
		ID:            task.ID,
		Title:         task.Title,
		Prompt:        task.Prompt,
		Criteria:      task.CriteriaList(),
		Status:        task.Status,
		TaskCode:      task.TaskCode,
		FolderID:      task.FolderID,
		LiveSessionID: task.LiveSessionID,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}
}

// NewTaskResponseSlice converts a list of models.
func NewTaskResponseSlice(tasks []models.Task) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, NewTaskResponse(task))
	}
	return responses
}

// NewFolderResponse converts the model.
func NewFolderResponse(folder models.Folder) FolderResponse {
	return FolderResponse{ID: folder.ID, Name: folder.Name, CreatedAt: folder.CreatedAt}
}

// UsageResponse reports a teacher's generation quota consumption.
type UsageResponse struct {
	Used         int    `json:"used"`
	MonthlyLimit int    `json:"monthly_limit"`
	Remaining    int    `json:"remaining"`
	Period       string `json:"period"`
}
