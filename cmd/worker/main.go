/**
 * OCR Worker - Main Entry Point
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed ocr:extract queue
 * - Tesseract extraction (CLI or in-process) with TSV layout reconstruction
 * - Redis result cache keyed by image fingerprint
 * - PostgreSQL for jobs and pages, Qdrant for the spatial word index
 * - Prometheus metrics, health, stats and job lookup on METRICS_ADDR
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/ocr-worker/internal/config"
	"github.com/adverant/nexus/ocr-worker/internal/logging"
	"github.com/adverant/nexus/ocr-worker/internal/metrics"
	"github.com/adverant/nexus/ocr-worker/internal/ocr"
	"github.com/adverant/nexus/ocr-worker/internal/processor"
	"github.com/adverant/nexus/ocr-worker/internal/queue"
	"github.com/adverant/nexus/ocr-worker/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid worker configuration: %w", err)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logging.NewLogger("worker")

	log.Info("OCR worker starting",
		"queue", cfg.QueueName,
		"workers", cfg.WorkerConcurrency,
		"engine", cfg.Engine,
		"qdrant", cfg.QdrantURL)

	// Storage (PostgreSQL + Qdrant)
	storageManager, err := storage.NewStorageManager(cfg.DatabaseURL, cfg.QdrantURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to initialize storage manager: %w", err)
	}
	defer storageManager.Close()
	log.Info("storage manager initialized")

	cache, err := storage.NewResultCacheFromURL(cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize result cache: %w", err)
	}
	defer cache.Close()

	tracker, err := queue.NewStatusTrackerFromURL(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		return fmt.Errorf("failed to initialize status tracker: %w", err)
	}
	defer tracker.Close()

	// Extraction
	runner, err := ocr.NewRunner(cfg.Engine, cfg.TesseractPath)
	if err != nil {
		return err
	}
	if cli, ok := runner.(*ocr.CLIRunner); ok {
		if err := cli.Available(); err != nil {
			log.Warn("tesseract binary not available; jobs will fail until it is installed", "error", err)
		}
	}

	extractor := ocr.NewExtractor(&ocr.ExtractorConfig{Runner: runner, TempDir: cfg.TempDir})

	proc, err := processor.NewPageProcessor(&processor.ProcessorConfig{
		Extractor:      extractor,
		Store:          storageManager,
		Cache:          cache,
		DefaultOptions: cfg.Options(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize page processor: %w", err)
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		Tracker:           tracker,
		ProcessingTimeout: cfg.ProcessingTimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize queue consumer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	opsServer := newOpsServer(cfg.MetricsAddr, storageManager)
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	log.Info("OCR worker ready, waiting for jobs", "metrics_addr", cfg.MetricsAddr)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Error("error stopping queue consumer", "error", err)
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping metrics server", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}

// opsBackend is what the ops endpoints read from
type opsBackend interface {
	Ping(ctx context.Context) error
	GetStats(ctx context.Context) (map[string]interface{}, error)
	GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error)
}

// newOpsServer serves /metrics, /health, /stats and /jobs/{id}
func newOpsServer(addr string, backend opsBackend) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := backend.Ping(ctx); err != nil {
			http.Error(w, "database health check failed: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := backend.GetStats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, stats)
	})

	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := backend.GetJobByID(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, job)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
