package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedAction is returned when a message names an action outside the supported set
	ErrUnsupportedAction = errors.New("unsupported action")

	// ErrNoExecutor is returned when a supported action has no executor wired
	ErrNoExecutor = errors.New("no executor for action")

	// ErrMaxRetriesExceeded is returned when a message keeps failing past the retry limit
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// NullText stands in for an absent action in failure reasons
const NullText = "null"

// UnsupportedActionReason is the failure reason recorded for an unknown action
func UnsupportedActionReason(raw string) string {
	if raw == "" {
		raw = NullText
	}
	return fmt.Sprintf("Unsupported action '%s'", raw)
}

// RetryableError wraps transient errors that should trigger a redelivery
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err, or anything it wraps, is a RetryableError
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
