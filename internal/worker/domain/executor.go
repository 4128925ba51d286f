package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Executor performs the work behind one action. A returned error is a
// terminal failure of the job, its text becomes the failure reason.
type Executor interface {
	Execute(ctx context.Context, job *Job) error
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, job *Job) error

func (f ExecutorFunc) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// Executors holds one executor per supported action
type Executors struct {
	Invoice           Executor
	Highlight         Executor
	EmailNotification Executor
}

// For returns the executor of a supported action
func (e Executors) For(action Action) (Executor, error) {
	var executor Executor

	switch action {
	case ActionGenerateInvoice:
		executor = e.Invoice
	case ActionGenerateHighlight:
		executor = e.Highlight
	case ActionSendEmailNotification:
		executor = e.EmailNotification
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, action)
	}

	if executor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExecutor, action)
	}

	return executor, nil
}

// Validate reports every supported action left without an executor
func (e Executors) Validate() error {
	var errs []error
	for _, action := range SupportedActions {
		if _, err := e.For(action); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SimulatedExecutor stands in for real work with a fixed delay. The delay
// is not interrupted by context cancellation.
type SimulatedExecutor struct {
	action Action
	delay  time.Duration
	logger *slog.Logger
}

func NewSimulatedExecutor(action Action, delay time.Duration, logger *slog.Logger) *SimulatedExecutor {
	return &SimulatedExecutor{
		action: action,
		delay:  delay,
		logger: logger,
	}
}

func (e *SimulatedExecutor) Execute(_ context.Context, job *Job) error {
	e.logger.Info("Executing job",
		slog.String("job_id", job.JobID),
		slog.String("action", string(e.action)),
		slog.Duration("simulated_work", e.delay),
	)

	time.Sleep(e.delay)

	return nil
}

// NewSimulatedExecutors wires a SimulatedExecutor for every supported action
func NewSimulatedExecutors(delay time.Duration, logger *slog.Logger) Executors {
	return Executors{
		Invoice:           NewSimulatedExecutor(ActionGenerateInvoice, delay, logger),
		Highlight:         NewSimulatedExecutor(ActionGenerateHighlight, delay, logger),
		EmailNotification: NewSimulatedExecutor(ActionSendEmailNotification, delay, logger),
	}
}
