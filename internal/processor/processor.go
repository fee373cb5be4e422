/**
 * Page Processor for the OCR worker
 *
 * Runs one queued page through the pipeline:
 * - fingerprint the image and consult the result cache
 * - extract text or structured lines with the OCR engine
 * - index words in Qdrant and store the page in PostgreSQL
 */

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/ocr-worker/internal/errors"
	"github.com/adverant/nexus/ocr-worker/internal/logging"
	"github.com/adverant/nexus/ocr-worker/internal/metrics"
	"github.com/adverant/nexus/ocr-worker/internal/ocr"
	"github.com/adverant/nexus/ocr-worker/internal/storage"
)

// Requested output modes. An empty mode runs the options verbatim.
const (
	ModePlain      = metrics.ModePlain
	ModeStructured = metrics.ModeStructured
)

// PageProcessorInterface defines the interface for page processing
type PageProcessorInterface interface {
	ProcessPage(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// Extractor runs the OCR engine
type Extractor interface {
	Extract(ctx context.Context, path string, opts ocr.Options) (*ocr.Result, error)
	Fingerprint(path string, opts ocr.Options) (string, error)
}

// PageStore persists pages and job state
type PageStore interface {
	StoreExtraction(ctx context.Context, input *storage.ExtractionInput) (*storage.ExtractionOutput, error)
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// ResultCache keeps results by fingerprint
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*ocr.Result, bool, error)
	Set(ctx context.Context, fingerprint string, result *ocr.Result) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Extractor Extractor
	Store     PageStore
	Cache     ResultCache // optional

	// DefaultOptions are used when a request carries no options
	DefaultOptions ocr.Options
}

// ProcessRequest represents a page processing request
type ProcessRequest struct {
	JobID     string
	UserID    string
	ImagePath string
	Mode      string
	Options   []string
}

// ProcessResult represents the processing result
type ProcessResult struct {
	PageID           string
	Mode             string
	LineCount        int
	WordCount        int
	IndexedWords     int
	Cached           bool
	ProcessingTimeMs int64
}

// PageProcessor handles page processing
type PageProcessor struct {
	extractor      Extractor
	store          PageStore
	cache          ResultCache
	defaultOptions ocr.Options
	logger         *logging.Logger
}

// NewPageProcessor creates a new page processor
func NewPageProcessor(cfg *ProcessorConfig) (*PageProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}

	if cfg.Store == nil {
		return nil, fmt.Errorf("page store is required")
	}

	return &PageProcessor{
		extractor:      cfg.Extractor,
		store:          cfg.Store,
		cache:          cfg.Cache,
		defaultOptions: cfg.DefaultOptions,
		logger:         logging.NewLogger("processor"),
	}, nil
}

// ProcessPage processes a page through the complete pipeline
func (p *PageProcessor) ProcessPage(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log := p.logger.With("job_id", req.JobID)

	opts, err := p.resolveOptions(req)
	if err != nil {
		return nil, err
	}
	mode := ModePlain
	if opts.Tabular() {
		mode = ModeStructured
	}

	// Step 1: fingerprint (fails with NO_SUCH_INPUT_FILE for a missing image)
	fingerprint, err := p.extractor.Fingerprint(req.ImagePath, opts)
	if err != nil {
		return nil, withJob(err, req.JobID)
	}

	// Step 2: cache lookup
	result, cached := p.lookup(ctx, log, fingerprint)

	// Step 3: extraction
	if !cached {
		extractStart := time.Now()
		result, err = p.extractor.Extract(ctx, req.ImagePath, opts)
		metrics.RecordExtraction(mode, err, time.Since(extractStart))
		if err != nil {
			log.Warn("extraction failed", "image", req.ImagePath, "error", err)
			return nil, withJob(err, req.JobID)
		}
		p.remember(ctx, log, fingerprint, result)
	}

	lineCount, wordCount := len(result.Lines), result.Lines.WordCount()
	if result.Structured {
		metrics.RecordPage(lineCount, wordCount)
	}

	// Step 4: persist
	stored, err := p.store.StoreExtraction(ctx, &storage.ExtractionInput{
		JobID:       req.JobID,
		Fingerprint: fingerprint,
		Result:      result,
	})
	if err != nil {
		return nil, errors.NewStorageFailedError(req.JobID, err)
	}

	processingTime := time.Since(startTime).Milliseconds()
	log.Info("page processed",
		"page_id", stored.PageID,
		"mode", mode,
		"lines", lineCount,
		"words", wordCount,
		"cached", cached,
		"duration_ms", processingTime)

	return &ProcessResult{
		PageID:           stored.PageID,
		Mode:             mode,
		LineCount:        lineCount,
		WordCount:        wordCount,
		IndexedWords:     stored.IndexedWords,
		Cached:           cached,
		ProcessingTimeMs: processingTime,
	}, nil
}

// UpdateJobStatus updates job status in PostgreSQL
func (p *PageProcessor) UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error {
	return p.store.UpdateJobStatus(ctx, update)
}

// resolveOptions applies the requested mode to the request or default options
func (p *PageProcessor) resolveOptions(req *ProcessRequest) (ocr.Options, error) {
	opts := ocr.Options(req.Options)
	if len(opts) == 0 {
		opts = p.defaultOptions
	}

	switch req.Mode {
	case "":
		return opts, nil
	case ModeStructured:
		return opts.WithTabular(), nil
	case ModePlain:
		return opts.WithoutTabular(), nil
	default:
		return nil, errors.NewInvalidPayloadError(fmt.Errorf("unknown mode %q", req.Mode)).WithJob(req.JobID)
	}
}

func (p *PageProcessor) lookup(ctx context.Context, log *logging.Logger, fingerprint string) (*ocr.Result, bool) {
	if p.cache == nil {
		return nil, false
	}

	result, found, err := p.cache.Get(ctx, fingerprint)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		log.Warn("result cache unavailable", "error", errors.NewCacheFailedError(fingerprint, err))
		return nil, false
	case found:
		metrics.RecordCacheLookup("hit")
		return result, true
	default:
		metrics.RecordCacheLookup("miss")
		return nil, false
	}
}

func (p *PageProcessor) remember(ctx context.Context, log *logging.Logger, fingerprint string, result *ocr.Result) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, fingerprint, result); err != nil {
		log.Warn("failed to cache result", "error", errors.NewCacheFailedError(fingerprint, err))
	}
}

// withJob tags processing errors with the job they occurred in
func withJob(err error, jobID string) error {
	if pe, ok := errors.AsProcessingError(err); ok {
		return pe.WithJob(jobID)
	}
	return err
}
