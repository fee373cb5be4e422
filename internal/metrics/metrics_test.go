package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExtraction(t *testing.T) {
	before := testutil.ToFloat64(extractionsTotal.WithLabelValues(ModeStructured, "error"))

	RecordExtraction(ModeStructured, errors.New("boom"), 20*time.Millisecond)

	after := testutil.ToFloat64(extractionsTotal.WithLabelValues(ModeStructured, "error"))
	assert.Equal(t, before+1, after)
}

func TestRecordCacheLookupAndJob(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	RecordCacheLookup("hit")
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))

	done := testutil.ToFloat64(jobsTotal.WithLabelValues("completed"))
	RecordJob("completed")
	assert.Equal(t, done+1, testutil.ToFloat64(jobsTotal.WithLabelValues("completed")))
}

func TestHandler(t *testing.T) {
	RecordPage(2, 7)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ocr_page_words")
}
