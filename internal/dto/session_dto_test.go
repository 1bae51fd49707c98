package dto

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quill-go-api/internal/models"
)

func TestContentPreviewCutsOnRuneBoundary(t *testing.T) {
	student := models.Student{
		ID:     "stu-1",
		Name:   "Mia",
		Status: models.StatusSubmitted,
		Submission: &models.Submission{
			Content: strings.Repeat("学校は遅く始まるべきだ。", 30),
		},
	}

	snapshot := NewStudentSnapshot(student)
	require.True(t, utf8.ValidString(snapshot.ContentPreview))
	require.Equal(t, 140, utf8.RuneCountInString(snapshot.ContentPreview))
}

func TestContentPreviewKeepsShortContentIntact(t *testing.T) {
	student := models.Student{
		Status: models.StatusSubmitted,
		Submission: &models.Submission{
			Content: "  Schools should start later.  ",
		},
	}

	snapshot := NewStudentSnapshot(student)
	require.Equal(t, "Schools should start later.", snapshot.ContentPreview)
}

func TestStudentSnapshotOmitsSubmissionFields(t *testing.T) {
	snapshot := NewStudentSnapshot(models.Student{ID: "stu-1", Status: models.StatusActive})
	require.Empty(t, snapshot.ContentPreview)
	require.False(t, snapshot.HasFeedback)
	require.Zero(t, snapshot.RevisionCount)
}
