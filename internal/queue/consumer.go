/**
 * Queue Consumer for the OCR worker
 *
 * Consumes ocr:extract tasks from Redis and runs each page through the processor.
 * Uses Asynq for queue management.
 */

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/ocr-worker/internal/errors"
	"github.com/adverant/nexus/ocr-worker/internal/logging"
	"github.com/adverant/nexus/ocr-worker/internal/metrics"
	"github.com/adverant/nexus/ocr-worker/internal/processor"
	"github.com/adverant/nexus/ocr-worker/internal/storage"
)

// defaultProcessingTimeout applies when ConsumerConfig leaves it unset
const defaultProcessingTimeout = 5 * time.Minute

// Consumer handles job consumption from Redis queue
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.PageProcessorInterface
	tracker   *StatusTracker
	config    *ConsumerConfig
	logger    *logging.Logger

	// lastAttempt reports whether a failure ends the task for good
	lastAttempt func(ctx context.Context) bool
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PageProcessorInterface
	Tracker           *StatusTracker // optional
	ProcessingTimeout time.Duration
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("queue")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at a minute
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing error", "type", task.Type(), "error", err)
			}),
			Logger: &asynqLogger{logger: logger.With("source", "asynq")},
		},
	)

	consumer := &Consumer{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: cfg.Processor,
		tracker:   cfg.Tracker,
		config:    cfg,
		logger:    logger,
	}

	consumer.mux.HandleFunc(TaskTypeExtract, consumer.handleExtract)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("queue consumer stopped")
	return nil
}

// handleExtract processes one ocr:extract task
func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	payload, err := DecodePayload(task.Payload())
	if err != nil {
		metrics.RecordJob(StatusFailed)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log := c.logger.With("job_id", payload.JobID)
	log.Info("processing page", "image", payload.ImagePath, "mode", payload.Mode, "user", payload.UserID)

	c.markProcessing(ctx, log, payload)

	timeout := c.config.ProcessingTimeout
	if timeout <= 0 {
		timeout = defaultProcessingTimeout
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessPage(processCtx, payload.request())
	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Warn("processing timed out", "duration", duration, "timeout", timeout)
			err = errors.NewProcessingTimeoutError(payload.JobID, timeout, err)
		} else {
			log.Error("processing failed", "duration", duration, "error", err)
		}

		// a missing image or a failing engine will not fix itself on retry
		skipRetry := errors.IsExtractionError(err)

		if skipRetry || c.isLastAttempt(ctx) {
			c.markFailed(ctx, log, payload, StatusFailed, err, duration)
			metrics.RecordJob(StatusFailed)
		} else {
			c.markFailed(ctx, log, payload, StatusRetrying, err, duration)
			metrics.RecordJob(StatusRetrying)
		}

		if skipRetry {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("page processing failed: %w", err)
	}

	log.Info("processing completed",
		"duration", duration,
		"page_id", result.PageID,
		"lines", result.LineCount,
		"words", result.WordCount,
		"cached", result.Cached)

	c.markCompleted(ctx, log, payload, result, duration)
	metrics.RecordJob(StatusCompleted)

	return nil
}

func (c *Consumer) isLastAttempt(ctx context.Context) bool {
	if c.lastAttempt != nil {
		return c.lastAttempt(ctx)
	}
	return isLastAttempt(ctx)
}

// isLastAttempt reads the retry counters asynq puts on the handler context.
// Without them the failure is treated as final.
func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func (c *Consumer) markProcessing(ctx context.Context, log *logging.Logger, payload *JobPayload) {
	if err := c.processor.UpdateJobStatus(ctx, &storage.JobUpdate{
		JobID:     payload.JobID,
		Status:    StatusProcessing,
		UserID:    payload.UserID,
		ImagePath: payload.ImagePath,
		Metadata:  jobMetadata(payload),
	}); err != nil {
		log.Warn("failed to update status to processing", "error", err)
	}

	if c.tracker != nil {
		if err := c.tracker.MarkProcessing(ctx, payload.JobID); err != nil {
			log.Warn("failed to track processing job", "error", err)
		}
	}
}

func (c *Consumer) markCompleted(ctx context.Context, log *logging.Logger, payload *JobPayload, result *processor.ProcessResult, duration time.Duration) {
	if err := c.processor.UpdateJobStatus(ctx, &storage.JobUpdate{
		JobID:            payload.JobID,
		Status:           StatusCompleted,
		Mode:             result.Mode,
		LineCount:        result.LineCount,
		WordCount:        result.WordCount,
		PageID:           result.PageID,
		ProcessingTimeMs: duration.Milliseconds(),
		Metadata:         map[string]interface{}{"cached": result.Cached},
	}); err != nil {
		log.Warn("failed to update status to completed", "error", err)
	}

	if c.tracker != nil {
		if err := c.tracker.MarkCompleted(ctx, payload.JobID, result); err != nil {
			log.Warn("failed to track completed job", "error", err)
		}
	}
}

// markFailed records a failed attempt; status is StatusFailed when the job
// is done for good and StatusRetrying when asynq will run it again
func (c *Consumer) markFailed(ctx context.Context, log *logging.Logger, payload *JobPayload, status string, cause error, duration time.Duration) {
	details := map[string]interface{}{"error": cause.Error()}
	code := "PROCESSING_ERROR"

	if pe, ok := errors.AsProcessingError(cause); ok {
		details = pe.ToMap()
		code = string(pe.Code)
	}

	if err := c.processor.UpdateJobStatus(ctx, &storage.JobUpdate{
		JobID:            payload.JobID,
		Status:           status,
		ErrorCode:        code,
		ErrorMessage:     cause.Error(),
		ProcessingTimeMs: duration.Milliseconds(),
		Metadata:         details,
	}); err != nil {
		log.Warn("failed to update job status", "status", status, "error", err)
	}

	if c.tracker == nil {
		return
	}

	var err error
	if status == StatusRetrying {
		err = c.tracker.MarkRetrying(ctx, payload.JobID)
	} else {
		err = c.tracker.MarkFailed(ctx, payload.JobID, details)
	}
	if err != nil {
		log.Warn("failed to track job", "status", status, "error", err)
	}
}

func jobMetadata(p *JobPayload) map[string]interface{} {
	md := make(map[string]interface{}, len(p.Metadata)+2)
	for k, v := range p.Metadata {
		md[k] = v
	}
	if len(p.Options) > 0 {
		md["options"] = p.Options
	}
	if p.Mode != "" {
		md["mode"] = p.Mode
	}
	return md
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"timeout":     c.config.ProcessingTimeout.String(),
	}
}
