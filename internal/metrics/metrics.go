package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction modes used as label values
const (
	ModePlain      = "plain"
	ModeStructured = "structured"
)

var (
	// Extraction metrics
	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_extractions_total",
			Help: "Total number of OCR extractions",
		},
		[]string{"mode", "status"},
	)

	extractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_extraction_duration_seconds",
			Help:    "OCR extraction duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"mode"},
	)

	pageLines = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ocr_page_lines",
			Help:    "Number of lines reconstructed per page",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	pageWords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ocr_page_words",
			Help:    "Number of words reconstructed per page",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Queue metrics
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_jobs_total",
			Help: "Queue jobs by final status",
		},
		[]string{"status"}, // completed, failed, timeout
	)
)

// RecordExtraction records the outcome of one extraction
func RecordExtraction(mode string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	extractionsTotal.WithLabelValues(mode, status).Inc()
	extractionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordPage records the size of a structured page
func RecordPage(lines, words int) {
	pageLines.Observe(float64(lines))
	pageWords.Observe(float64(words))
}

// RecordCacheLookup records a cache hit, miss or error
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordJob records a finished queue job
func RecordJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
