package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/teris-io/shortid"

	"github.com/cuongbtq/async-job-service/internal/notify"
	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/storage"
	"github.com/cuongbtq/async-job-service/internal/worker/domain"
)

// JobStore is the part of the status store the worker writes to
type JobStore interface {
	UpdateStatus(ctx context.Context, jobID string, status storage.Status) error
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Store       JobStore
	Queue       queue.Receiver
	Notifier    notify.Publisher
	Executors   domain.Executors
	Concurrency int
	BatchSize   int
	BatchWait   time.Duration

	// MaxRetries bounds redeliveries after a retryable failure; zero
	// disables retries.
	MaxRetries int

	// WorkerID is generated when empty
	WorkerID string
}

// Worker receives job messages in batches and drives each job to a
// terminal status.
type Worker struct {
	logger    *slog.Logger
	store     JobStore
	queue     queue.Receiver
	notifier  notify.Publisher
	executors domain.Executors

	workerID    string
	concurrency int
	batchSize   int
	batchWait   time.Duration
	maxRetries  int

	wg    sync.WaitGroup
	fatal chan error
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	if cfg.Store == nil || cfg.Queue == nil || cfg.Notifier == nil {
		return nil, errors.New("worker requires a store, a queue and a notifier")
	}

	if err := cfg.Executors.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executors: %w", err)
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		id, err := NewWorkerID()
		if err != nil {
			return nil, err
		}
		workerID = id
	}

	return &Worker{
		logger:      cfg.Logger.With(slog.String("worker_id", workerID)),
		store:       cfg.Store,
		queue:       cfg.Queue,
		notifier:    cfg.Notifier,
		executors:   cfg.Executors,
		workerID:    workerID,
		concurrency: max(cfg.Concurrency, 1),
		batchSize:   max(cfg.BatchSize, 1),
		batchWait:   cfg.BatchWait,
		maxRetries:  max(cfg.MaxRetries, 0),
		fatal:       make(chan error, 1),
	}, nil
}

// NewWorkerID generates a short worker id of the form worker-<shortid>
func NewWorkerID() (string, error) {
	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate worker id: %w", err)
	}
	return "worker-" + id, nil
}

// ID returns the worker id, also used as the consumer tag
func (w *Worker) ID() string {
	return w.workerID
}

// Start spawns the receive loops and blocks until ctx is canceled or the
// queue consumer goes away.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Int("batch_size", w.batchSize),
		slog.Duration("batch_wait", w.batchWait),
		slog.Int("max_retries", w.maxRetries),
	)

	w.spawnWorkerPool(ctx)

	select {
	case <-ctx.Done():
		w.logger.Info("Worker context canceled, stopping...")
		return nil
	case err := <-w.fatal:
		return err
	}
}

// Stop waits for in-flight batches to be processed and settled. The
// context passed to Start must be canceled first.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")

	if closer, ok := w.queue.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			w.logger.Warn("Failed to close queue consumer",
				slog.Any("error", err),
			)
		}
	}

	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

func (w *Worker) reportFatal(err error) {
	select {
	case w.fatal <- err:
	default:
	}
}
