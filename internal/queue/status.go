/**
 * Redis job status tracking
 *
 * Mirrors job state into Redis sets and hashes so dashboards can poll it, and
 * publishes a job:<status> event on <queue>:events for streaming clients.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job states
const (
	StatusProcessing = "processing"
	StatusRetrying   = "retrying"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// allStatuses lists every status set; a job is a member of at most one
var allStatuses = []string{StatusProcessing, StatusRetrying, StatusCompleted, StatusFailed}

// detailHashes maps a finished status to the hash holding its payload
var detailHashes = map[string]string{
	StatusCompleted: "results",
	StatusFailed:    "errors",
}

// StatusTracker records job state in Redis
type StatusTracker struct {
	client    *redis.Client
	queueName string
}

// NewStatusTracker creates a tracker for queueName
func NewStatusTracker(client *redis.Client, queueName string) *StatusTracker {
	return &StatusTracker{client: client, queueName: queueName}
}

// NewStatusTrackerFromURL parses redisURL and creates its own client
func NewStatusTrackerFromURL(redisURL, queueName string) (*StatusTracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewStatusTracker(redis.NewClient(opts), queueName), nil
}

// MarkProcessing moves the job to the processing set, clearing the
// outcome of any earlier attempt
func (t *StatusTracker) MarkProcessing(ctx context.Context, jobID string) error {
	return t.move(ctx, jobID, StatusProcessing, nil)
}

// MarkRetrying moves the job to the retrying set after a failed attempt
// that the queue will run again
func (t *StatusTracker) MarkRetrying(ctx context.Context, jobID string) error {
	return t.move(ctx, jobID, StatusRetrying, nil)
}

// MarkCompleted moves the job to the completed set and stores its result
func (t *StatusTracker) MarkCompleted(ctx context.Context, jobID string, result interface{}) error {
	return t.move(ctx, jobID, StatusCompleted, result)
}

// MarkFailed moves the job to the failed set and stores its error details
func (t *StatusTracker) MarkFailed(ctx context.Context, jobID string, details map[string]interface{}) error {
	return t.move(ctx, jobID, StatusFailed, details)
}

func (t *StatusTracker) move(ctx context.Context, jobID, status string, value interface{}) error {
	hash, hasDetails := detailHashes[status]

	var data []byte
	if hasDetails && value != nil {
		var err error
		if data, err = json.Marshal(value); err != nil {
			return fmt.Errorf("failed to marshal job %s %s: %w", jobID, hash, err)
		}
	}

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, other := range allStatuses {
			if other != status {
				pipe.SRem(ctx, t.key(other), jobID)
			}
		}
		for other, otherHash := range detailHashes {
			if other != status || data == nil {
				pipe.HDel(ctx, t.key(otherHash), jobID)
			}
		}
		pipe.SAdd(ctx, t.key(status), jobID)
		if data != nil {
			pipe.HSet(ctx, t.key(hash), jobID, data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", jobID, status, err)
	}

	return t.publish(ctx, jobID, status)
}

func (t *StatusTracker) publish(ctx context.Context, jobID, status string) error {
	event := map[string]interface{}{
		"event":     "job:" + status,
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)

	if err := t.client.Publish(ctx, t.key("events"), eventData).Err(); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}
	return nil
}

// Result returns the stored result or error details of a finished job
func (t *StatusTracker) Result(ctx context.Context, jobID string) (status string, data json.RawMessage, err error) {
	for _, s := range []struct{ status, hash string }{
		{StatusCompleted, "results"},
		{StatusFailed, "errors"},
	} {
		raw, err := t.client.HGet(ctx, t.key(s.hash), jobID).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
		}
		return s.status, raw, nil
	}

	for _, status := range []string{StatusProcessing, StatusRetrying} {
		member, err := t.client.SIsMember(ctx, t.key(status), jobID).Result()
		if err != nil {
			return "", nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
		}
		if member {
			return status, nil, nil
		}
	}
	return "", nil, nil
}

// GetStats returns the size of each status set
func (t *StatusTracker) GetStats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(allStatuses))
	for _, status := range allStatuses {
		n, err := t.client.SCard(ctx, t.key(status)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to count %s jobs: %w", status, err)
		}
		stats[status] = n
	}
	return stats, nil
}

// Close closes the underlying client
func (t *StatusTracker) Close() error {
	return t.client.Close()
}

func (t *StatusTracker) key(suffix string) string {
	return t.queueName + ":" + suffix
}
