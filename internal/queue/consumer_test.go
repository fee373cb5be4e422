package queue

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ocr-worker/internal/errors"
	"github.com/adverant/nexus/ocr-worker/internal/logging"
	"github.com/adverant/nexus/ocr-worker/internal/processor"
	"github.com/adverant/nexus/ocr-worker/internal/storage"
)

var _ asynq.Logger = (*asynqLogger)(nil)

type fakeProcessor struct {
	process func(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error)
	updates []*storage.JobUpdate
}

func (f *fakeProcessor) ProcessPage(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
	return f.process(ctx, req)
}

func (f *fakeProcessor) UpdateJobStatus(_ context.Context, u *storage.JobUpdate) error {
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakeProcessor) statuses() []string {
	var out []string
	for _, u := range f.updates {
		out = append(out, u.Status)
	}
	return out
}

func newTestConsumer(t *testing.T, fp *fakeProcessor, timeout time.Duration) (*Consumer, *StatusTracker) {
	t.Helper()
	tracker, _ := newTestTracker(t)
	return &Consumer{
		processor: fp,
		tracker:   tracker,
		config:    &ConsumerConfig{QueueName: "ocr", ProcessingTimeout: timeout},
		logger:    logging.NewLogger("queue-test"),
	}, tracker
}

func extractTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewExtractTask(&JobPayload{JobID: "job-1", ImagePath: "/data/page.png", Mode: processor.ModeStructured})
	require.NoError(t, err)
	return task
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(&ConsumerConfig{QueueName: "ocr", Processor: &fakeProcessor{}})
	assert.ErrorContains(t, err, "RedisURL")

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", Processor: &fakeProcessor{}})
	assert.ErrorContains(t, err, "QueueName")

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "ocr"})
	assert.ErrorContains(t, err, "Processor")
}

func TestHandleExtract_Success(t *testing.T) {
	fp := &fakeProcessor{process: func(_ context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
		assert.Equal(t, "/data/page.png", req.ImagePath)
		assert.Equal(t, processor.ModeStructured, req.Mode)
		return &processor.ProcessResult{PageID: "page-1", Mode: processor.ModeStructured, LineCount: 2, WordCount: 5}, nil
	}}
	c, tracker := newTestConsumer(t, fp, time.Second)

	require.NoError(t, c.handleExtract(context.Background(), extractTask(t)))

	assert.Equal(t, []string{StatusProcessing, StatusCompleted}, fp.statuses())
	done := fp.updates[1]
	assert.Equal(t, "page-1", done.PageID)
	assert.Equal(t, 5, done.WordCount)

	status, data, err := tracker.Result(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Contains(t, string(data), "page-1")
}

func TestHandleExtract_InvalidPayloadSkipsRetry(t *testing.T) {
	fp := &fakeProcessor{}
	c, _ := newTestConsumer(t, fp, time.Second)

	err := c.handleExtract(context.Background(), asynq.NewTask(TaskTypeExtract, []byte(`{"jobId":"x"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.True(t, errors.HasCode(err, errors.ErrorInvalidPayload))
	assert.Empty(t, fp.updates)
}

func TestHandleExtract_ExtractionErrorSkipsRetry(t *testing.T) {
	fp := &fakeProcessor{process: func(context.Context, *processor.ProcessRequest) (*processor.ProcessResult, error) {
		return nil, errors.NewNoSuchInputFileError("/data/page.png").WithJob("job-1")
	}}
	c, tracker := newTestConsumer(t, fp, time.Second)

	err := c.handleExtract(context.Background(), extractTask(t))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	assert.Equal(t, []string{StatusProcessing, StatusFailed}, fp.statuses())
	assert.Equal(t, "NO_SUCH_INPUT_FILE", fp.updates[1].ErrorCode)

	status, data, err := tracker.Result(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
	assert.Contains(t, string(data), "NO_SUCH_INPUT_FILE")
}

func TestHandleExtract_StorageErrorRetries(t *testing.T) {
	fp := &fakeProcessor{process: func(context.Context, *processor.ProcessRequest) (*processor.ProcessResult, error) {
		return nil, errors.NewStorageFailedError("job-1", stderrors.New("connection refused"))
	}}
	c, tracker := newTestConsumer(t, fp, time.Second)
	c.lastAttempt = func(context.Context) bool { return false }

	err := c.handleExtract(context.Background(), extractTask(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	assert.Equal(t, []string{StatusProcessing, StatusRetrying}, fp.statuses())
	assert.Equal(t, "STORAGE_FAILED", fp.updates[1].ErrorCode)

	status, _, err := tracker.Result(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRetrying, status)
}

func TestHandleExtract_StorageErrorOnLastAttempt(t *testing.T) {
	fp := &fakeProcessor{process: func(context.Context, *processor.ProcessRequest) (*processor.ProcessResult, error) {
		return nil, stderrors.New("connection refused")
	}}
	c, tracker := newTestConsumer(t, fp, time.Second)
	c.lastAttempt = func(context.Context) bool { return true }

	err := c.handleExtract(context.Background(), extractTask(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	assert.Equal(t, []string{StatusProcessing, StatusFailed}, fp.statuses())
	assert.Equal(t, "PROCESSING_ERROR", fp.updates[1].ErrorCode)

	status, data, err := tracker.Result(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
	assert.Contains(t, string(data), "connection refused")
}

func TestHandleExtract_RetryThenSucceed(t *testing.T) {
	attempts := 0
	fp := &fakeProcessor{process: func(context.Context, *processor.ProcessRequest) (*processor.ProcessResult, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.NewStorageFailedError("job-1", stderrors.New("connection refused"))
		}
		return &processor.ProcessResult{PageID: "page-1", Mode: processor.ModeStructured, WordCount: 5}, nil
	}}
	c, tracker := newTestConsumer(t, fp, time.Second)
	c.lastAttempt = func(context.Context) bool { return false }
	ctx := context.Background()

	require.Error(t, c.handleExtract(ctx, extractTask(t)))
	require.NoError(t, c.handleExtract(ctx, extractTask(t)))

	assert.Equal(t, []string{StatusProcessing, StatusRetrying, StatusProcessing, StatusCompleted}, fp.statuses())
	assert.Empty(t, fp.updates[3].ErrorCode)

	status, data, err := tracker.Result(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Contains(t, string(data), "page-1")

	stats, err := tracker.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{StatusProcessing: 0, StatusRetrying: 0, StatusCompleted: 1, StatusFailed: 0}, stats)
}

func TestIsLastAttempt_OutsideAsynq(t *testing.T) {
	assert.True(t, isLastAttempt(context.Background()))
}

func TestHandleExtract_Timeout(t *testing.T) {
	fp := &fakeProcessor{process: func(ctx context.Context, _ *processor.ProcessRequest) (*processor.ProcessResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c, _ := newTestConsumer(t, fp, 20*time.Millisecond)

	err := c.handleExtract(context.Background(), extractTask(t))
	assert.True(t, errors.HasCode(err, errors.ErrorProcessingTimeout))
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, "PROCESSING_TIMEOUT", fp.updates[1].ErrorCode)
}

func TestNewProducer(t *testing.T) {
	_, err := NewProducer(&ProducerConfig{RedisURL: "redis://localhost:6379"})
	assert.ErrorContains(t, err, "QueueName")

	_, err = NewProducer(&ProducerConfig{RedisURL: "ftp://x", QueueName: "ocr"})
	assert.Error(t, err)

	p, err := NewProducer(&ProducerConfig{RedisURL: "redis://localhost:6379", QueueName: "ocr", MaxRetry: 2})
	require.NoError(t, err)
	defer p.Close()
	assert.Len(t, p.taskOptions(&JobPayload{JobID: "j"}), 3)
}
