package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/telemetry"
)

const receiveBackoff = time.Second

// receiveLoop pulls batches until ctx is canceled. A batch that was
// received is always processed and settled, even during shutdown.
func (w *Worker) receiveLoop(ctx context.Context, loopName string) {
	logger := w.logger.With(slog.String("loop", loopName))

	for {
		if ctx.Err() != nil {
			logger.Info("Receive loop stopping - context canceled")
			return
		}

		batch, err := w.queue.Receive(ctx, w.batchSize, w.batchWait)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Receive loop stopping - context canceled")
				return
			}

			if errors.Is(err, queue.ErrClosed) {
				logger.Error("Queue consumer closed, stopping receive loop")
				w.reportFatal(fmt.Errorf("%s: %w", loopName, err))
				return
			}

			logger.Error("Failed to receive messages",
				slog.Any("error", err),
				slog.Duration("retry_after", receiveBackoff),
			)

			select {
			case <-ctx.Done():
			case <-time.After(receiveBackoff):
			}
			continue
		}

		if len(batch) == 0 {
			continue
		}

		telemetry.WorkerBatchSize.Observe(float64(len(batch)))

		logger.Debug("Batch received",
			slog.Int("size", len(batch)),
		)

		// in-flight work is not interrupted by shutdown
		batchCtx := context.WithoutCancel(ctx)

		results := w.HandleBatch(batchCtx, batch)
		w.settle(batchCtx, logger, results)

		summary := Summarize(results)
		logger.Info("Batch processed",
			slog.Int("size", len(batch)),
			slog.Int("handled", summary.Handled),
			slog.Int("malformed", summary.Malformed),
			slog.Int("retried", summary.Retried),
			slog.Int("exhausted", summary.Exhausted),
		)
	}
}
