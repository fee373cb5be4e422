package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/ocr-worker/internal/errors"
	"github.com/adverant/nexus/ocr-worker/internal/processor"
)

// TaskTypeExtract is the asynq task type for page extraction
const TaskTypeExtract = "ocr:extract"

// JobPayload is the body of an ocr:extract task
type JobPayload struct {
	JobID     string                 `json:"jobId"`
	UserID    string                 `json:"userId,omitempty"`
	ImagePath string                 `json:"imagePath"`
	Mode      string                 `json:"mode,omitempty"`
	Options   []string               `json:"options,omitempty"` // set by UnmarshalJSON
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts options either as an array of flags or as one comma separated string
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		Options interface{} `json:"options,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	p.Options = nil
	switch v := aux.Options.(type) {
	case nil:
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				p.Options = append(p.Options, part)
			}
		}
	case []interface{}:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("option %d must be a string, got %T", i, item)
			}
			p.Options = append(p.Options, s)
		}
	default:
		return fmt.Errorf("options must be a string or an array of strings, got %T", v)
	}

	return nil
}

// Validate checks the fields every job needs
func (p *JobPayload) Validate() error {
	if p.JobID == "" {
		return fmt.Errorf("jobId is required")
	}
	if p.ImagePath == "" {
		return fmt.Errorf("imagePath is required")
	}
	switch p.Mode {
	case "", processor.ModePlain, processor.ModeStructured:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", processor.ModePlain, processor.ModeStructured, p.Mode)
	}
	return nil
}

// DecodePayload parses and validates a task body
func DecodePayload(data []byte) (*JobPayload, error) {
	var p JobPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NewInvalidPayloadError(err)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.NewInvalidPayloadError(err).WithJob(p.JobID)
	}
	return &p, nil
}

// NewExtractTask builds the asynq task for a payload
func NewExtractTask(p *JobPayload) (*asynq.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTypeExtract, data), nil
}

func (p *JobPayload) request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:     p.JobID,
		UserID:    p.UserID,
		ImagePath: p.ImagePath,
		Mode:      p.Mode,
		Options:   p.Options,
	}
}
