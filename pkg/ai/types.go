package ai

import (
	"context"

	"github.com/noah-isme/quill-go-api/internal/feedback"
)

// GenerationInput carries everything the model needs to produce feedback on
// one submission.
type GenerationInput struct {
	TaskTitle     string
	Prompt        string
	Criteria      []string
	Content       string
	RevisionCount int
}

// Generator describes an AI model capable of producing structured writing
// feedback. Calls are latency-unbounded and fallible; callers retry only
// after an explicit failure.
type Generator interface {
	Generate(ctx context.Context, input GenerationInput) (feedback.Session, error)
}
