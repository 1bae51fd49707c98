package repository

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quill-go-api/internal/models"
)

func setupTaskIndex(t *testing.T) TaskCodeIndex {
	t.Helper()
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	return NewTaskCodeIndex(client, "quill:test:taskcode")
}

func TestTaskRepositoryCreateRefreshesCodeIndex(t *testing.T) {
	db := setupRepoTestDB(t, &models.Task{})
	index := setupTaskIndex(t)
	repo := NewTaskRepository(db, index)
	ctx := context.Background()

	task := models.Task{
		TeacherID: 1,
		Title:     "Sensory walk",
		Prompt:    "Describe the walk to school using all five senses.",
		Status:    models.TaskStatusActive,
		TaskCode:  "WALK42",
	}
	require.NoError(t, task.SetCriteria([]string{"Use 3 sensory details"}))
	require.NoError(t, repo.Create(ctx, &task))

	summary, err := index.Get(ctx, "walk42")
	require.NoError(t, err)
	require.Equal(t, task.ID, summary.TaskID)
	require.Equal(t, models.TaskStatusActive, summary.Status)
}

func TestTaskRepositoryStatusToggleKeepsIndexInStep(t *testing.T) {
	db := setupRepoTestDB(t, &models.Task{})
	index := setupTaskIndex(t)
	repo := NewTaskRepository(db, index)
	ctx := context.Background()

	task := models.Task{TeacherID: 1, Title: "Claim and evidence", Status: models.TaskStatusActive, TaskCode: "CLAIM1"}
	require.NoError(t, repo.Create(ctx, &task))

	require.NoError(t, repo.UpdateStatus(ctx, task.ID, models.TaskStatusInactive))

	summary, err := index.Get(ctx, "CLAIM1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusInactive, summary.Status)

	fetched, err := repo.GetByCode(ctx, "CLAIM1")
	require.NoError(t, err)
	require.False(t, fetched.IsActive())
}

func TestTaskRepositoryGetByCodeFallsBackToDatabase(t *testing.T) {
	db := setupRepoTestDB(t, &models.Task{})
	repo := NewTaskRepository(db, nil)
	ctx := context.Background()

	task := models.Task{TeacherID: 2, Title: "Poem draft", Status: models.TaskStatusActive, TaskCode: "POEM77"}
	require.NoError(t, repo.Create(ctx, &task))

	fetched, err := repo.GetByCode(ctx, "POEM77")
	require.NoError(t, err)
	require.Equal(t, task.ID, fetched.ID)
}
