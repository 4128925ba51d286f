package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/telemetry"
	"github.com/cuongbtq/async-job-service/internal/worker/domain"
)

// spawnWorkerPool spawns one independent receive loop per unit of concurrency
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(loopNum int) {
			defer w.wg.Done()
			w.receiveLoop(ctx, fmt.Sprintf("%s-%d", w.workerID, loopNum))
		}(i)
	}
}

// settle acknowledges, discards or requeues every delivery of a batch
func (w *Worker) settle(ctx context.Context, logger *slog.Logger, results []Result) {
	for _, r := range results {
		var err error

		switch r.Outcome {
		case OutcomeHandled:
			err = w.queue.Ack(ctx, r.Delivery)
		case OutcomeMalformed, OutcomeExhausted:
			err = w.queue.Discard(ctx, r.Delivery)
		case OutcomeRetry:
			err = w.queue.Retry(ctx, r.Delivery)
		}

		telemetry.WorkerJobs.WithLabelValues(r.Outcome.String()).Inc()

		if err != nil {
			// an unsettled message comes back after its visibility timeout
			// or when the channel closes
			logger.Error("Failed to settle message",
				slog.String("message_id", r.Delivery.ID),
				slog.String("job_id", r.JobID),
				slog.String("outcome", r.Outcome.String()),
				slog.Any("error", err),
			)
			continue
		}

		logger.Debug("Message settled",
			slog.String("message_id", r.Delivery.ID),
			slog.String("job_id", r.JobID),
			slog.String("outcome", r.Outcome.String()),
		)
	}
}

// outcomeFor maps a processing error onto how the message is settled
func outcomeFor(err error) Outcome {
	if err == nil {
		return OutcomeHandled
	}

	// Malformed messages never become valid on redelivery
	if errors.Is(err, queue.ErrMalformedMessage) {
		return OutcomeMalformed
	}

	// Redeliver transient infrastructure failures
	if domain.IsRetryable(err) {
		return OutcomeRetry
	}

	// Default: the job reached a final state, don't redeliver
	return OutcomeHandled
}
