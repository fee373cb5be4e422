package ocr

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/ocr-worker/internal/logging"
)

const tsvHeaderRow = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

// wordLevel is Tesseract's TSV level number for words
const wordLevel = 5

// GosseractRunner runs Tesseract in-process through libtesseract and writes the same
// output files the CLI would, so the extractor treats both engines alike.
type GosseractRunner struct {
	logger *logging.Logger
}

// NewGosseractRunner creates an in-process runner
func NewGosseractRunner() *GosseractRunner {
	return &GosseractRunner{logger: logging.NewLogger("tesseract-lib")}
}

// Run performs OCR on inputPath and writes outputBase+".txt" or outputBase+".tsv"
func (r *GosseractRunner) Run(ctx context.Context, inputPath, outputBase string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := r.configure(client, opts.Args()); err != nil {
		return err
	}

	if err := client.SetImage(inputPath); err != nil {
		return fmt.Errorf("failed to set image: %w", err)
	}

	var output string
	if opts.Tabular() {
		boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
		if err != nil {
			return fmt.Errorf("tesseract OCR failed: %w", err)
		}
		output = renderTSV(boxes)
	} else {
		text, err := client.Text()
		if err != nil {
			return fmt.Errorf("tesseract OCR failed: %w", err)
		}
		output = text
	}

	return os.WriteFile(outputBase+opts.OutputExt(), []byte(output), 0o600)
}

// configure applies the subset of CLI flags libtesseract exposes
func (r *GosseractRunner) configure(client *gosseract.Client, args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := ""
		if i+1 < len(args) {
			value = args[i+1]
		}

		switch arg {
		case "-l":
			if err := client.SetLanguage(strings.Split(value, "+")...); err != nil {
				return fmt.Errorf("failed to set language %q: %w", value, err)
			}
			i++
		case "--psm":
			mode, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid --psm value %q: %w", value, err)
			}
			if err := client.SetPageSegMode(gosseract.PageSegMode(mode)); err != nil {
				return fmt.Errorf("failed to set page segmentation mode: %w", err)
			}
			i++
		case "-c":
			key, val, ok := strings.Cut(value, "=")
			if !ok {
				return fmt.Errorf("invalid -c value %q", value)
			}
			if err := client.SetVariable(gosseract.SettableVariable(key), val); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
			i++
		case tsvConfig, "txt":
			// output format, handled by Run
		default:
			r.logger.Warn("ignoring flag not supported in-process", "flag", arg)
		}
	}
	return nil
}

// renderTSV writes word boxes in Tesseract's 12-column layout
func renderTSV(boxes []gosseract.BoundingBox) string {
	var sb strings.Builder
	sb.WriteString(tsvHeaderRow)
	sb.WriteByte('\n')

	for i, b := range boxes {
		fmt.Fprintf(&sb, "%d\t1\t0\t0\t0\t%d\t%d\t%d\t%d\t%d\t%.6f\t%s\n",
			wordLevel, i+1,
			b.Box.Min.X, b.Box.Min.Y, b.Box.Dx(), b.Box.Dy(),
			b.Confidence, b.Word)
	}

	return sb.String()
}
