package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/async-job-service/internal/backend"
	"github.com/cuongbtq/async-job-service/internal/config"
	"github.com/cuongbtq/async-job-service/internal/ops"
	"github.com/cuongbtq/async-job-service/internal/worker"
	"github.com/cuongbtq/async-job-service/internal/worker/domain"
	"github.com/cuongbtq/async-job-service/shared/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Driver),
		slog.String("queue", cfg.Queue.Driver),
		slog.String("notifications", cfg.Notifications.Driver),
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends := backend.New(cfg, appLogger.Logger)

	// Cleanup function to close all resources
	cleanup := func() {
		if err := backends.Close(); err != nil {
			appLogger.Error("Failed to close backends", slog.Any("error", err))
		}
	}
	defer cleanup()

	workerInstance, err := initWorker(ctx, cfg, backends, appLogger.Logger)
	if err != nil {
		return err
	}

	// Ops server: health and metrics
	var opsServer *http.Server
	errChan := make(chan error, 2)

	if cfg.Worker.OpsPort > 0 {
		opsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Worker.OpsPort),
			Handler:           ops.Router(cfg.App.Name, backends.HealthCheck),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("ops server: %w", err)
			}
		}()

		appLogger.Info("Ops server listening", slog.String("address", opsServer.Addr))
	}

	// Start worker in a goroutine
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.ID()),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case runErr = <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", runErr),
		)
	}

	// Cancel context to stop receiving
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Let in-flight batches finish and settle
	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Ops server shutdown failed", slog.Any("error", err))
		}
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   timeFormat,
	})
}

// initWorker opens the store, queue and notifier and builds the worker
func initWorker(ctx context.Context, cfg *config.Config, backends *backend.Backend, logger *slog.Logger) (*worker.Worker, error) {
	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	store, err := backends.Store(startCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize status store: %w", err)
	}

	logger.Info("Status store ready", slog.String("table", cfg.Store.Table))

	workerCfg := &worker.Config{
		Logger:      logger,
		Store:       store,
		Executors:   domain.NewSimulatedExecutors(cfg.Worker.SimulatedWork, logger),
		Concurrency: cfg.Worker.Concurrency,
		BatchSize:   cfg.Worker.BatchSize,
		BatchWait:   cfg.Worker.BatchWait,
		MaxRetries:  cfg.Worker.MaxRetries,
	}

	// the worker id doubles as the RabbitMQ consumer tag
	workerID, err := worker.NewWorkerID()
	if err != nil {
		return nil, err
	}
	workerCfg.WorkerID = workerID

	workerCfg.Queue, err = backends.Queue(startCtx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job queue: %w", err)
	}

	logger.Info("Job queue ready", slog.String("queue", cfg.Queue.Name))

	workerCfg.Notifier, err = backends.Notifier(startCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	logger.Info("Notifier ready",
		slog.String("success_topic", cfg.Notifications.SuccessTopic),
		slog.String("failure_topic", cfg.Notifications.FailureTopic),
	)

	return worker.NewWorker(workerCfg)
}
