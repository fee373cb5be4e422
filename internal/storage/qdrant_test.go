package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ocr-worker/internal/layout"
)

func TestWordCentre(t *testing.T) {
	w := layout.Word{X: 10, Y: 20, W: 31, H: 10}
	assert.Equal(t, []float32{25.5, 25}, wordCentre(w))
}

func TestPayloadRoundTrip(t *testing.T) {
	p := &WordPoint{
		PageID: "page-1",
		JobID:  "job-1",
		Line:   42,
		Word:   layout.Word{Text: "Hello world", X: 3, Y: 42, W: 88, H: 12, Count: 2},
	}

	got := fromPayload(toPayload(p))
	assert.Equal(t, p.PageID, got.PageID)
	assert.Equal(t, p.JobID, got.JobID)
	assert.Equal(t, p.Line, got.Line)
	assert.Equal(t, p.Word, got.Word)
}

func TestToPointStruct(t *testing.T) {
	p := &WordPoint{ID: "8c5e0a52-1d0b-4a43-9a57-8f0a9e7f3b11", PageID: "page-1", Word: layout.Word{X: 0, Y: 0, W: 4, H: 2}}

	ps := toPointStruct(p)
	assert.Equal(t, p.ID, ps.Id.GetUuid())
	require.NotNil(t, ps.Vectors.GetVector())
	assert.Equal(t, []float32{2, 1}, ps.Vectors.GetVector().Data)
	assert.Equal(t, "page-1", ps.Payload[payloadPageID].GetStringValue())
}

func TestPageFilter(t *testing.T) {
	f := pageFilter("page-9")
	require.Len(t, f.Must, 1)

	field := f.Must[0].GetField()
	require.NotNil(t, field)
	assert.Equal(t, payloadPageID, field.Key)
	assert.Equal(t, "page-9", field.Match.GetKeyword())
}
