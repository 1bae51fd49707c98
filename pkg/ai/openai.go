package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/quill-go-api/internal/feedback"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quill",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of AI feedback generation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of AI feedback generation failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	tracer := otel.Tracer("github.com/noah-isme/quill-go-api/pkg/ai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Generate sends the generation request to OpenAI and parses the response.
func (g *OpenAIGenerator) Generate(parent context.Context, input GenerationInput) (feedback.Session, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: generatorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return feedback.Session{}, fmt.Errorf("openai generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return feedback.Session{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	session, err := parseGenerationResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return feedback.Session{}, err
	}

	return session, nil
}

func generatorSystemPrompt() string {
	return "You are a writing coach for school students. Respond with a JSON object containing goal (string), strengths and gr" +
		"owth_areas (arrays of {type, text, anchors}), and next_steps (array of {action, target, success_indicator, reflect_pro" +
		"mpt, call_to_action}). Type must be one of task, process, self_reg. Anchors must be verbatim quotes from the submissio" +
		"n. Keep call_to_action under 40 characters. Praise the work and the process, never the student's ability, and never co" +
		"mpare the student to classmates."
}

func buildUserPrompt(input GenerationInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Task\n")
	builder.WriteString(input.TaskTitle)
	builder.WriteString("\n\n## Prompt\n")
	builder.WriteString(input.Prompt)
	if len(input.Criteria) > 0 {
		builder.WriteString("\n\n## Success Criteria\n")
		for _, criterion := range input.Criteria {
			builder.WriteString("- ")
			builder.WriteString(criterion)
			builder.WriteString("\n")
		}
	}
	builder.WriteString("\n## Submission\n")
	builder.WriteString(input.Content)
	if input.RevisionCount > 0 {
		builder.WriteString(fmt.Sprintf("\n\n## Notes\nThis is revision %d of the piece.", input.RevisionCount))
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseGenerationResponse(content string) (feedback.Session, error) {
	var session feedback.Session
	if err := json.Unmarshal([]byte(content), &session); err != nil {
		return feedback.Session{}, fmt.Errorf("parse feedback json: %w", err)
	}

	normalizeItems(session.Strengths)
	normalizeItems(session.GrowthAreas)

	return session, nil
}

// normalizeItems coerces unknown type tags to task-level so downstream
// consumers only ever see the three-member enumeration.
func normalizeItems(items []feedback.Item) {
	for i := range items {
		switch items[i].Type {
		case feedback.ItemTypeTask, feedback.ItemTypeProcess, feedback.ItemTypeSelfReg:
		default:
			items[i].Type = feedback.ItemTypeTask
		}
	}
}
