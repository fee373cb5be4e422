/**
 * Extractor - the public OCR surface
 *
 * Checks the input, runs the engine into a temporary output file, reads the file back,
 * removes it, and in tabular mode rebuilds the page layout from the TSV records.
 */

package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/ocr-worker/internal/errors"
	"github.com/adverant/nexus/ocr-worker/internal/layout"
	"github.com/adverant/nexus/ocr-worker/internal/logging"
)

// outputPrefix names the engine's temporary output files
const outputPrefix = "ocr_output"

// removeFile is swapped in tests to simulate cleanup failures
var removeFile = os.Remove

// Result is the outcome of one extraction
type Result struct {
	Structured bool        `json:"structured"`
	Text       string      `json:"text,omitempty"`
	Lines      layout.Page `json:"lines,omitempty"`
}

// ExtractorConfig holds extractor configuration
type ExtractorConfig struct {
	Runner  Runner
	TempDir string // defaults to os.TempDir()
}

// Extractor runs an OCR engine and turns its output into text or a structured page
type Extractor struct {
	runner  Runner
	tempDir string
	logger  *logging.Logger
}

// NewExtractor creates an extractor around the given engine runner
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &Extractor{
		runner:  cfg.Runner,
		tempDir: tempDir,
		logger:  logging.NewLogger("extractor"),
	}
}

// ExtractPlainText returns the engine's plain-text output for the image at path.
// Any TSV switch in opts is dropped.
func (e *Extractor) ExtractPlainText(ctx context.Context, path string, opts Options) (string, error) {
	res, err := e.Extract(ctx, path, opts.WithoutTabular())
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ExtractStructuredText returns the reconstructed lines and words for the image at path.
// TabularFlag is added to opts when missing.
func (e *Extractor) ExtractStructuredText(ctx context.Context, path string, opts Options) (layout.Page, error) {
	res, err := e.Extract(ctx, path, opts.WithTabular())
	if err != nil {
		return nil, err
	}
	return res.Lines, nil
}

// Extract runs the engine with opts verbatim; the presence of TabularFlag selects
// structured output.
func (e *Extractor) Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	startTime := time.Now()

	if err := checkInput(path); err != nil {
		return nil, err
	}

	outputBase := filepath.Join(e.tempDir, outputPrefix+uuid.New().String())
	if err := e.runner.Run(ctx, path, outputBase, opts); err != nil {
		return nil, errors.NewEngineInvocationError(path, err)
	}

	raw, err := readAndDelete(outputBase + opts.OutputExt())
	if err != nil {
		return nil, err
	}

	if !opts.Tabular() {
		e.logger.Debug("plain text extracted", "input", path, "chars", len(raw), "duration", time.Since(startTime))
		return &Result{Text: raw}, nil
	}

	page := layout.StructureTSV(raw)
	e.logger.Debug("page structured",
		"input", path,
		"lines", len(page),
		"words", page.WordCount(),
		"duration", time.Since(startTime))

	return &Result{Structured: true, Lines: page}, nil
}

// Fingerprint identifies an image and option set, for caching results
func (e *Extractor) Fingerprint(path string, opts Options) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNoSuchInputFileError(path)
		}
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	for _, opt := range opts {
		h.Write([]byte{0})
		h.Write([]byte(opt))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// checkInput fails with NO_SUCH_INPUT_FILE when nothing can be found at path
func checkInput(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.NewNoSuchInputFileError(path)
	}
	return nil
}

// readAndDelete returns the contents of outputPath and removes the file
func readAndDelete(outputPath string) (string, error) {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		// the engine may have left a partial file behind
		_ = removeFile(outputPath)
		return "", errors.NewOutputReadError(outputPath, err)
	}

	if err := removeFile(outputPath); err != nil {
		return "", errors.NewOutputCleanupError(outputPath, err)
	}

	return string(data), nil
}
