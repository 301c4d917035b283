/**
 * OCR Worker - entry point
 *
 * Wires configuration, storage, the optional vision oracle, the recognition
 * pipeline and the queue consumer, then runs until interrupted.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docuflow/ocr-worker/internal/config"
	"github.com/docuflow/ocr-worker/internal/logging"
	"github.com/docuflow/ocr-worker/internal/ocr"
	"github.com/docuflow/ocr-worker/internal/oracle"
	"github.com/docuflow/ocr-worker/internal/processor"
	"github.com/docuflow/ocr-worker/internal/queue"
	"github.com/docuflow/ocr-worker/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.NewLogger("Worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	store, err := storage.NewPostgresStorage(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	events, err := queue.NewEvents(cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err.Error())
		os.Exit(1)
	}
	defer events.Close()

	oracleClient := oracle.NewClient(oracle.Config{
		BaseURL: cfg.OracleURL,
		APIKey:  cfg.OracleAPIKey,
		Timeout: time.Duration(cfg.OracleTimeoutMs) * time.Millisecond,
	})
	if oracleClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := oracleClient.HealthCheck(ctx); err != nil {
			logger.Warn("Oracle health check failed, continuing without it", "error", err.Error())
		}
		cancel()
	}

	engine := ocr.NewTesseractEngine()
	if v, err := engine.Version(); err != nil {
		logger.Warn("Recognition engine not detected, oracle fallback only", "error", err.Error())
	} else {
		logger.Info("Recognition engine detected", "version", v)
	}

	// oracleClient is a typed nil when disabled; the pipeline expects a true
	// nil interface in that case.
	var pipelineOracle ocr.Oracle
	if oracleClient != nil {
		pipelineOracle = oracleClient
	}

	pipeline := ocr.NewPipeline(engine, pipelineOracle, ocr.PipelineConfig{
		MaxImageDimension:   cfg.MaxImageDimension,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		DefaultLanguage:     ocr.LanguageConfig(cfg.DefaultLanguage),
		MinSampleLength:     cfg.MinSampleLength,
		Scoring: ocr.ScoringConfig{
			LengthNorm:        cfg.LengthNorm,
			ContrastNorm:      cfg.ContrastNorm,
			ScriptRatioWeight: cfg.ScriptRatioWeight,
			MinTextLength:     cfg.MinTextLength,
			NoiseFloor:        cfg.NoiseFloor,
		},
	})

	proc := processor.NewJobProcessor(pipeline, store, events, processor.Options{
		MaxImageBytes:     cfg.MaxImageBytes,
		ProcessingTimeout: time.Duration(cfg.ProcessingTimeoutMs) * time.Millisecond,
	})

	consumer, err := queue.NewConsumer(cfg.RedisURL, cfg.QueueName, cfg.WorkerConcurrency, proc)
	if err != nil {
		logger.Error("Failed to create queue consumer", "error", err.Error())
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Start()
	}()

	logger.Info("Worker started",
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency,
		"defaultLanguage", cfg.DefaultLanguage)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", "signal", sig.String())
		consumer.Shutdown()
	case err := <-errCh:
		if err != nil {
			logger.Error("Queue consumer stopped", "error", err.Error())
			os.Exit(1)
		}
	}

	logger.Info("Worker stopped")
}
