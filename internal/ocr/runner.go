package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/adverant/nexus/ocr-worker/internal/logging"
)

// Runner invokes an OCR engine on inputPath. The engine writes its result to
// outputBase plus the extension given by opts.OutputExt().
type Runner interface {
	Run(ctx context.Context, inputPath, outputBase string, opts Options) error
}

// CLIRunner runs the tesseract binary as a child process
type CLIRunner struct {
	path   string
	logger *logging.Logger
}

// NewCLIRunner creates a runner for the binary at path ("tesseract" resolves via PATH)
func NewCLIRunner(path string) *CLIRunner {
	if path == "" {
		path = "tesseract"
	}
	return &CLIRunner{
		path:   path,
		logger: logging.NewLogger("tesseract-cli"),
	}
}

// Run executes `tesseract <input> <outputBase> <flags...>`
func (r *CLIRunner) Run(ctx context.Context, inputPath, outputBase string, opts Options) error {
	args := append([]string{inputPath, outputBase}, opts.Args()...)

	cmd := exec.CommandContext(ctx, r.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("invoking engine", "binary", r.path, "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		r.logger.Warn("engine exited with failure",
			"binary", r.path,
			"input", inputPath,
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()))
		return err
	}

	return nil
}

// Available reports whether the binary can be found
func (r *CLIRunner) Available() error {
	if _, err := exec.LookPath(r.path); err != nil {
		return fmt.Errorf("tesseract binary %q not found: %w", r.path, err)
	}
	return nil
}

// Engine names
const (
	EngineCLI       = "cli"
	EngineGosseract = "gosseract"
)

// NewRunner returns the runner for the named engine. tesseractPath is used by the cli engine.
func NewRunner(engine, tesseractPath string) (Runner, error) {
	switch engine {
	case EngineCLI, "":
		return NewCLIRunner(tesseractPath), nil
	case EngineGosseract:
		return NewGosseractRunner(), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", engine)
	}
}
