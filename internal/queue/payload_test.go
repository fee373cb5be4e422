package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ocr-worker/internal/errors"
)

func TestDecodePayload_OptionsArray(t *testing.T) {
	p, err := DecodePayload([]byte(`{"jobId":"j1","imagePath":"/p.png","options":["-l eng","--psm 6"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"-l eng", "--psm 6"}, p.Options)
}

func TestDecodePayload_OptionsString(t *testing.T) {
	p, err := DecodePayload([]byte(`{"jobId":"j1","imagePath":"/p.png","mode":"structured","options":"-l eng, tsv ,"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"-l eng", "tsv"}, p.Options)
	assert.Equal(t, "structured", p.Mode)
}

func TestDecodePayload_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"options of wrong type", `{"jobId":"j","imagePath":"/p","options":42}`},
		{"non-string option", `{"jobId":"j","imagePath":"/p","options":["-l eng",3]}`},
		{"missing job", `{"imagePath":"/p"}`},
		{"missing image", `{"jobId":"j"}`},
		{"unknown mode", `{"jobId":"j","imagePath":"/p","mode":"hocr"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload([]byte(tt.body))
			assert.True(t, errors.HasCode(err, errors.ErrorInvalidPayload), "%v", err)
		})
	}
}

func TestNewExtractTask(t *testing.T) {
	p := &JobPayload{JobID: "j2", ImagePath: "/p.png", Options: []string{"-l eng"}}

	task, err := NewExtractTask(p)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeExtract, task.Type())

	var back JobPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &back))
	assert.Equal(t, *p, back)

	_, err = NewExtractTask(&JobPayload{JobID: "j3"})
	assert.Error(t, err)
}
