package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/quill-go-api/internal/models"
)

// TaskSummary is the globally readable slice of a task, keyed by its short
// join code. Students resolve codes through this index without any teacher
// authentication context.
type TaskSummary struct {
	TaskCode  string            `json:"task_code"`
	TaskID    uint              `json:"task_id"`
	TeacherID uint              `json:"teacher_id"`
	Title     string            `json:"title"`
	Status    models.TaskStatus `json:"status"`
}

// TaskCodeIndex maps short join codes to task summaries.
type TaskCodeIndex interface {
	Get(ctx context.Context, code string) (TaskSummary, error)
	Put(ctx context.Context, summary TaskSummary) error
	Delete(ctx context.Context, code string) error
}

type redisTaskCodeIndex struct {
	client    *redis.Client
	keyPrefix string
}

// NewTaskCodeIndex builds a redis-backed code index.
func NewTaskCodeIndex(client *redis.Client, keyPrefix string) TaskCodeIndex {
	if keyPrefix == "" {
		keyPrefix = "quill:taskcode"
	}
	return &redisTaskCodeIndex{client: client, keyPrefix: keyPrefix}
}

func (i *redisTaskCodeIndex) key(code string) string {
	return fmt.Sprintf("%s:%s", i.keyPrefix, strings.ToUpper(strings.TrimSpace(code)))
}

func (i *redisTaskCodeIndex) Get(ctx context.Context, code string) (TaskSummary, error) {
	raw, err := i.client.Get(ctx, i.key(code)).Result()
	if err != nil {
		return TaskSummary{}, err
	}

	var summary TaskSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return TaskSummary{}, err
	}
	return summary, nil
}

func (i *redisTaskCodeIndex) Put(ctx context.Context, summary TaskSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, i.key(summary.TaskCode), payload, 0).Err()
}

func (i *redisTaskCodeIndex) Delete(ctx context.Context, code string) error {
	return i.client.Del(ctx, i.key(code)).Err()
}
