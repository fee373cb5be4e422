package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the OCR worker
 *
 * Extraction failures are terminal for a call: none of them are retried in-process.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Extraction errors
	ErrorNoSuchInputFile        ErrorCode = "NO_SUCH_INPUT_FILE"
	ErrorEngineInvocationFailed ErrorCode = "ENGINE_INVOCATION_FAILED"
	ErrorOutputReadFailed       ErrorCode = "OUTPUT_READ_FAILED"
	ErrorOutputCleanupFailed    ErrorCode = "OUTPUT_CLEANUP_FAILED"

	// Worker errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
	ErrorCacheFailed       ErrorCode = "CACHE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewNoSuchInputFileError(path string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoSuchInputFile,
		Message:   fmt.Sprintf("no file exists at the path you specified: %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"input_path": path,
		},
	}
}

func NewEngineInvocationError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineInvocationFailed,
		Message:   fmt.Sprintf("OCR engine failed on %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"input_path": path,
		},
		Cause: cause,
	}
}

func NewOutputReadError(outputPath string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOutputReadFailed,
		Message:   fmt.Sprintf("failed to read OCR output %s", outputPath),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"output_path": outputPath,
		},
		Cause: cause,
	}
}

func NewOutputCleanupError(outputPath string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOutputCleanupFailed,
		Message:   fmt.Sprintf("failed to remove OCR output %s", outputPath),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"output_path": outputPath,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewInvalidPayloadError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidPayload,
		Message:   "job payload could not be decoded",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewCacheFailedError(key string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorCacheFailed,
		Message:   "result cache unavailable",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"cache_key": key,
		},
		Cause: cause,
	}
}

// WithJob returns a copy of the error attributed to jobID
func (e *ProcessingError) WithJob(jobID string) *ProcessingError {
	cp := *e
	cp.JobID = jobID
	return &cp
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.JobID != "" {
		result["job_id"] = e.JobID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// AsProcessingError returns the first ProcessingError in err's chain
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// CodeOf returns the code of the first ProcessingError in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	if pe, ok := AsProcessingError(err); ok {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err's chain carries a ProcessingError with the given code
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsExtractionError reports whether err is one of the terminal extraction failures
func IsExtractionError(err error) bool {
	switch CodeOf(err) {
	case ErrorNoSuchInputFile, ErrorEngineInvocationFailed, ErrorOutputReadFailed, ErrorOutputCleanupFailed:
		return true
	}
	return false
}
