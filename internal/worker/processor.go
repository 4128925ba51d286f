package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/async-job-service/internal/notify"
	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/storage"
	"github.com/cuongbtq/async-job-service/internal/telemetry"
	"github.com/cuongbtq/async-job-service/internal/worker/domain"
)

// Outcome tells how a delivery is settled after processing
type Outcome int

const (
	// OutcomeHandled: the job reached a terminal state or needs no work; ack
	OutcomeHandled Outcome = iota
	// OutcomeMalformed: the envelope is unusable; drop without redelivery
	OutcomeMalformed
	// OutcomeRetry: an infrastructure call failed; redeliver
	OutcomeRetry
	// OutcomeExhausted: retries ran out; drop to the dead letter queue
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeRetry:
		return "retry"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result is the processing outcome of one delivery
type Result struct {
	Delivery queue.Delivery
	JobID    string
	Outcome  Outcome
	Err      error
}

// BatchSummary counts the outcomes of a batch
type BatchSummary struct {
	Handled   int
	Malformed int
	Retried   int
	Exhausted int
}

// Summarize counts results per outcome
func Summarize(results []Result) BatchSummary {
	var s BatchSummary
	for _, r := range results {
		switch r.Outcome {
		case OutcomeHandled:
			s.Handled++
		case OutcomeMalformed:
			s.Malformed++
		case OutcomeRetry:
			s.Retried++
		case OutcomeExhausted:
			s.Exhausted++
		}
	}
	return s
}

// HandleBatch processes deliveries one after another. A failing message
// never affects the others in the batch.
func (w *Worker) HandleBatch(ctx context.Context, batch []queue.Delivery) []Result {
	results := make([]Result, 0, len(batch))

	for _, d := range batch {
		jobID, err := w.processMessage(ctx, d)

		outcome := outcomeFor(err)
		if outcome == OutcomeRetry && w.retriesExhausted(d) {
			w.logger.Error("Job exceeded max retries",
				slog.String("job_id", jobID),
				slog.String("message_id", d.ID),
				slog.Int("attempt", d.Attempt),
				slog.Int("max_retries", w.maxRetries),
				slog.Any("error", err),
			)
			outcome = OutcomeExhausted
			err = fmt.Errorf("%w: %w", domain.ErrMaxRetriesExceeded, err)
		}

		results = append(results, Result{
			Delivery: d,
			JobID:    jobID,
			Outcome:  outcome,
			Err:      err,
		})
	}

	return results
}

// retriesExhausted reports whether a delivery already used up its retries.
// An unknown attempt counts as the first.
func (w *Worker) retriesExhausted(d queue.Delivery) bool {
	return max(d.Attempt, 1)-1 >= w.maxRetries
}

// processMessage decodes one delivery, runs its action and records the
// terminal status.
func (w *Worker) processMessage(ctx context.Context, d queue.Delivery) (string, error) {
	msg, err := queue.DecodeMessage(d.Body)
	if err != nil {
		w.logger.Error("Malformed queue message, skipping",
			slog.String("message_id", d.ID),
			slog.Any("error", err),
			slog.String("body", string(d.Body)),
		)
		return "", err
	}

	logger := w.logger.With(
		slog.String("job_id", msg.JobID),
		slog.String("action", msg.Action),
	)

	logger.Info("Processing job",
		slog.String("message_id", d.ID),
		slog.Bool("redelivered", d.Redelivered),
	)

	action, ok := domain.ParseAction(msg.Action)
	if !ok {
		reason := domain.UnsupportedActionReason(msg.Action)
		logger.Warn("Unsupported action",
			slog.String("reason", reason),
		)
		return msg.JobID, w.finish(ctx, logger, msg, storage.StatusFailed, reason)
	}

	if err := w.execute(ctx, action, msg); err != nil {
		logger.Error("Job execution failed",
			slog.Any("error", err),
		)
		return msg.JobID, w.finish(ctx, logger, msg, storage.StatusFailed, err.Error())
	}

	logger.Info("Job execution completed")

	return msg.JobID, w.finish(ctx, logger, msg, storage.StatusCompleted, "")
}

// execute runs the executor of a supported action; a panic becomes a job failure
func (w *Worker) execute(ctx context.Context, action domain.Action, msg *queue.Message) (err error) {
	executor, err := w.executors.For(action)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()

	return executor.Execute(ctx, &domain.Job{
		JobID:  msg.JobID,
		Action: action,
		Data:   msg.Data,
	})
}

// finish records the terminal status and publishes the matching
// notification. Store and publish failures are retryable; a record that is
// missing or already in the other terminal status is left alone.
func (w *Worker) finish(ctx context.Context, logger *slog.Logger, msg *queue.Message, status storage.Status, reason string) error {
	if err := w.store.UpdateStatus(ctx, msg.JobID, status); err != nil {
		switch {
		case errors.Is(err, storage.ErrJobNotFound):
			logger.Warn("Job record not found, skipping status update",
				slog.String("status", string(status)),
			)
			return nil
		case errors.Is(err, storage.ErrStatusConflict):
			logger.Warn("Job already finished with a different status",
				slog.String("status", string(status)),
				slog.Any("error", err),
			)
			return nil
		default:
			logger.Error("Failed to update job status",
				slog.String("status", string(status)),
				slog.Any("error", err),
			)
			return domain.NewRetryableError(fmt.Errorf("failed to update job status: %w", err))
		}
	}

	topic := notify.TopicFor(status)
	notification := &notify.Notification{
		JobID:  msg.JobID,
		Action: msg.Action,
		Status: status,
		Reason: reason,
	}

	if err := w.notifier.Publish(ctx, topic, notification); err != nil {
		logger.Error("Failed to publish notification",
			slog.String("topic", string(topic)),
			slog.Any("error", err),
		)
		return domain.NewRetryableError(fmt.Errorf("failed to publish notification: %w", err))
	}

	telemetry.NotificationsPublished.WithLabelValues(string(topic)).Inc()

	logger.Info("Job finished",
		slog.String("status", string(status)),
		slog.String("topic", string(topic)),
	)

	return nil
}
