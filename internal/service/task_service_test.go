package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quill-go-api/internal/dto"
	"github.com/noah-isme/quill-go-api/internal/models"
	"github.com/noah-isme/quill-go-api/internal/repository"
)

type fakeFolderRepo struct {
	mu      sync.Mutex
	folders map[uint]models.Folder
	nextID  uint
}

func newFakeFolderRepo() *fakeFolderRepo {
	return &fakeFolderRepo{folders: make(map[uint]models.Folder)}
}

func (r *fakeFolderRepo) Create(_ context.Context, folder *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	folder.ID = r.nextID
	r.folders[folder.ID] = *folder
	return nil
}

func (r *fakeFolderRepo) ListByTeacher(_ context.Context, teacherID uint) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, folder := range r.folders {
		if folder.TeacherID == teacherID {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (r *fakeFolderRepo) Delete(_ context.Context, teacherID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	folder, ok := r.folders[id]
	if !ok || folder.TeacherID != teacherID {
		return nil
	}
	delete(r.folders, id)
	return nil
}

const testSessionRetention = 24 * time.Hour

func newTaskFixture(t *testing.T) (TaskService, *fakeTaskRepo, *fakeSessionRepo) {
	t.Helper()
	tasks := newFakeTaskRepo()
	students := newFakeStudentRepo()
	sessions := newFakeSessionRepo(tasks, students)
	svc := NewTaskService(tasks, newFakeFolderRepo(), sessions, testSessionRetention, validator.New(), zerolog.Nop())
	return svc, tasks, sessions
}

func TestTaskCreateAssignsJoinCode(t *testing.T) {
	svc, _, _ := newTaskFixture(t)

	created, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{
		Title:    "Persuasive Essay",
		Prompt:   "Argue for or against later school start times.",
		Criteria: []string{"Clear thesis", "Evidence from a source"},
	})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusActive, created.Status)
	require.Len(t, created.TaskCode, codeLength)
	for _, r := range created.TaskCode {
		require.Contains(t, codeAlphabet, string(r))
	}
	require.Equal(t, []string{"Clear thesis", "Evidence from a source"}, created.Criteria)
}

func TestTaskOwnershipEnforced(t *testing.T) {
	svc, _, _ := newTaskFixture(t)

	created, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{Title: "Essay", Prompt: "Write."})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 8, created.ID)
	require.ErrorIs(t, err, ErrTaskNotFound)

	_, err = svc.SetStatus(context.Background(), 8, created.ID, dto.TaskStatusRequest{Status: models.TaskStatusInactive})
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskDeactivationEndsLiveSession(t *testing.T) {
	svc, tasks, sessions := newTaskFixture(t)

	created, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{Title: "Essay", Prompt: "Write."})
	require.NoError(t, err)

	session := models.Session{ID: "sess-1", TaskID: created.ID, TeacherID: 7, Live: true}
	require.NoError(t, sessions.Create(context.Background(), &session))
	require.NoError(t, tasks.SetLiveSession(context.Background(), created.ID, &session.ID))

	updated, err := svc.SetStatus(context.Background(), 7, created.ID, dto.TaskStatusRequest{Status: models.TaskStatusInactive})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusInactive, updated.Status)
	require.Nil(t, updated.LiveSessionID)

	_, err = sessions.GetLiveByTask(context.Background(), created.ID)
	require.Error(t, err)

	// The ended session is stamped for retention cleanup.
	stored, err := sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(testSessionRetention), *stored.ExpiresAt, 5*time.Second)
}

func TestEndLiveSessionStampsExpiry(t *testing.T) {
	svc, tasks, sessions := newTaskFixture(t)

	created, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{Title: "Essay", Prompt: "Write."})
	require.NoError(t, err)

	session := models.Session{ID: "sess-2", TaskID: created.ID, TeacherID: 7, Live: true}
	require.NoError(t, sessions.Create(context.Background(), &session))
	require.NoError(t, tasks.SetLiveSession(context.Background(), created.ID, &session.ID))

	updated, err := svc.EndLiveSession(context.Background(), 7, created.ID)
	require.NoError(t, err)
	require.Nil(t, updated.LiveSessionID)
	require.Equal(t, models.TaskStatusActive, updated.Status)

	stored, err := sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.False(t, stored.Live)
	require.NotNil(t, stored.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(testSessionRetention), *stored.ExpiresAt, 5*time.Second)
}

func TestTaskListFilter(t *testing.T) {
	svc, _, _ := newTaskFixture(t)

	first, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{Title: "One", Prompt: "Write."})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 7, dto.TaskCreateRequest{Title: "Two", Prompt: "Write."})
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), 7, first.ID, dto.TaskStatusRequest{Status: models.TaskStatusInactive})
	require.NoError(t, err)

	active := models.TaskStatusActive
	listed, err := svc.List(context.Background(), 7, repository.TaskFilter{Status: &active})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "Two", listed[0].Title)
}

func TestFolderLifecycle(t *testing.T) {
	tasks := newFakeTaskRepo()
	students := newFakeStudentRepo()
	sessions := newFakeSessionRepo(tasks, students)
	folders := newFakeFolderRepo()
	svc := NewTaskService(tasks, folders, sessions, testSessionRetention, validator.New(), zerolog.Nop())

	folder, err := svc.CreateFolder(context.Background(), 7, dto.FolderCreateRequest{Name: "Unit 3"})
	require.NoError(t, err)

	created, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{Title: "Essay", Prompt: "Write."})
	require.NoError(t, err)

	moved, err := svc.Move(context.Background(), 7, created.ID, dto.TaskMoveRequest{FolderID: &folder.ID})
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	require.Equal(t, folder.ID, *moved.FolderID)

	listed, err := svc.ListFolders(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, svc.DeleteFolder(context.Background(), 7, folder.ID))
	listed, err = svc.ListFolders(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, listed)
}
