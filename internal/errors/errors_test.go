package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingError_Error(t *testing.T) {
	err := NewNoSuchInputFileError("/tmp/missing.tif")
	assert.Equal(t, "NO_SUCH_INPUT_FILE: no file exists at the path you specified: /tmp/missing.tif", err.Error())

	cause := stderrors.New("exit status 1")
	err = NewEngineInvocationError("/tmp/page.tif", cause)
	assert.Contains(t, err.Error(), "caused by: exit status 1")
}

func TestProcessingError_UnwrapKeepsCause(t *testing.T) {
	err := NewOutputReadError("/tmp/out.tsv", os.ErrPermission)
	assert.ErrorIs(t, err, os.ErrPermission)

	wrapped := fmt.Errorf("extract: %w", err)
	assert.True(t, HasCode(wrapped, ErrorOutputReadFailed))
	assert.False(t, HasCode(wrapped, ErrorOutputCleanupFailed))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorStorageFailed, CodeOf(NewStorageFailedError("job", nil)))
	assert.False(t, HasCode(nil, ErrorStorageFailed))
}

func TestIsExtractionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewNoSuchInputFileError("a"), true},
		{NewEngineInvocationError("a", nil), true},
		{NewOutputReadError("a", nil), true},
		{NewOutputCleanupError("a", nil), true},
		{NewProcessingTimeoutError("job", time.Second, nil), false},
		{NewCacheFailedError("key", nil), false},
		{stderrors.New("plain"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsExtractionError(tt.err), "%v", tt.err)
	}
}

func TestToMap(t *testing.T) {
	err := NewOutputCleanupError("/tmp/out.txt", os.ErrNotExist).WithJob("job-1")

	m := err.ToMap()
	assert.Equal(t, "OUTPUT_CLEANUP_FAILED", m["error_code"])
	assert.Equal(t, "job-1", m["job_id"])
	assert.Equal(t, "/tmp/out.txt", m["output_path"])
	assert.Equal(t, os.ErrNotExist.Error(), m["cause"])
}

func TestWithJobCopies(t *testing.T) {
	orig := NewNoSuchInputFileError("a")
	withJob := orig.WithJob("job-2")

	require.NotSame(t, orig, withJob)
	assert.Empty(t, orig.JobID)
	assert.Equal(t, "job-2", withJob.JobID)
}

func TestAsProcessingError(t *testing.T) {
	_, ok := AsProcessingError(stderrors.New("plain"))
	assert.False(t, ok)

	pe, ok := AsProcessingError(fmt.Errorf("wrapped: %w", NewInvalidPayloadError(nil)))
	require.True(t, ok)
	assert.Equal(t, ErrorInvalidPayload, pe.Code)
}
