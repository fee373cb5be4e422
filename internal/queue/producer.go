package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Producer enqueues ocr:extract tasks
type Producer struct {
	client    *asynq.Client
	queueName string
	maxRetry  int
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	RedisURL  string
	QueueName string
	MaxRetry  int
}

// NewProducer creates a new producer
func NewProducer(cfg *ProducerConfig) (*Producer, error) {
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Producer{
		client:    asynq.NewClient(redisOpt),
		queueName: cfg.QueueName,
		maxRetry:  cfg.MaxRetry,
	}, nil
}

// Enqueue submits a page for extraction. A missing JobID is generated; it doubles as
// the task ID so a job cannot be queued twice.
func (p *Producer) Enqueue(ctx context.Context, payload *JobPayload) (*asynq.TaskInfo, error) {
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}

	task, err := NewExtractTask(payload)
	if err != nil {
		return nil, err
	}

	info, err := p.client.EnqueueContext(ctx, task, p.taskOptions(payload)...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}

	return info, nil
}

func (p *Producer) taskOptions(payload *JobPayload) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(p.queueName),
		asynq.MaxRetry(p.maxRetry),
		asynq.TaskID(payload.JobID),
	}
}

// Close closes the underlying client
func (p *Producer) Close() error {
	return p.client.Close()
}
