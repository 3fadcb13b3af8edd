package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/tenantrag/internal/config"
)

// QueueDefault is the only queue the worker server polls.
const QueueDefault = "default"

const (
	ingestMaxRetry = 3
	ingestTimeout  = 10 * time.Minute
)

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueIngest schedules ingestion of a document and returns the job id.
// Delivery is at least once; the ingestion pipeline ignores documents that
// are no longer PENDING.
func (c *Client) EnqueueIngest(ctx context.Context, documentID int64) (string, error) {
	task, err := NewIngestTask(documentID)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, ingestOptions()...)
}

func ingestOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(ingestMaxRetry),
		asynq.Timeout(ingestTimeout),
	}
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (string, error) {
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}
