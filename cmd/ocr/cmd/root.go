package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adverant/nexus/ocr-worker/internal/config"
	"github.com/adverant/nexus/ocr-worker/internal/logging"
	"github.com/adverant/nexus/ocr-worker/internal/ocr"
)

// rootOptions is shared by every subcommand
type rootOptions struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
}

// defaultLogLevel keeps diagnostics off stderr unless something goes wrong
const defaultLogLevel = "warn"

// NewRootCommand builds the ocr command tree
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *rootOptions) {
	o := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "ocr",
		Short: "Tesseract text and layout extraction",
		Long: `Runs Tesseract on an image and prints its text, or rebuilds the page's lines and
words from the engine's TSV output. Pages can also be queued for the worker and
searched by position once stored.

Examples:
  ocr text scan.png
  ocr layout scan.png --format json -o "-l deu"
  ocr enqueue scan.png --mode structured
  ocr near 3f1c... 120 340 --limit 5`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is ocr-worker.yaml in . or /etc/ocr-worker)")
	flags.String("log-level", defaultLogLevel, "log level (debug, info, warn, error); LOG_LEVEL and the config file apply when unset")
	flags.String("engine", "", "OCR engine: cli or gosseract")
	flags.String("tesseract", "", "path to the tesseract binary for the cli engine")
	flags.String("redis-url", "", "Redis URL for enqueue and status")
	flags.String("qdrant-url", "", "Qdrant gRPC address for near")

	_ = o.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = o.v.BindPFlag("ocr_engine", flags.Lookup("engine"))
	_ = o.v.BindPFlag("tesseract_path", flags.Lookup("tesseract"))
	_ = o.v.BindPFlag("redis_url", flags.Lookup("redis-url"))
	_ = o.v.BindPFlag("qdrant_url", flags.Lookup("qdrant-url"))

	root.AddCommand(
		newTextCommand(o),
		newLayoutCommand(o),
		newEnqueueCommand(o),
		newStatusCommand(o),
		newNearCommand(o),
	)

	return root, o
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.v, o.cfgFile, config.WithDefault("log_level", defaultLogLevel))
	if err != nil {
		return err
	}
	o.cfg = cfg

	// command output owns stdout
	slog.SetDefault(slog.New(logging.NewHandler(cmd.ErrOrStderr(), cfg.LogLevel, "text")))
	return nil
}

func (o *rootOptions) extractor() (*ocr.Extractor, error) {
	runner, err := ocr.NewRunner(o.cfg.Engine, o.cfg.TesseractPath)
	if err != nil {
		return nil, err
	}
	return ocr.NewExtractor(&ocr.ExtractorConfig{Runner: runner, TempDir: o.cfg.TempDir}), nil
}

// engineOptions returns the --option values, falling back to OCR_OPTIONS
func (o *rootOptions) engineOptions(flagged []string) ocr.Options {
	if len(flagged) > 0 {
		return ocr.Options(flagged)
	}
	return ocr.Options(o.cfg.Options())
}
