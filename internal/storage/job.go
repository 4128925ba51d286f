// Package storage holds the job status record and the stores that persist it.
package storage

import (
	"context"
	"errors"
)

// Status is the lifecycle state of a job. A job starts pending and moves
// to exactly one terminal status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status ends the lifecycle
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DefaultUserID is recorded when the request carries no user_id
const DefaultUserID = "unknown"

var (
	// ErrJobNotFound is returned when no record exists for the job id
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a record whose job id is taken
	ErrJobExists = errors.New("job already exists")

	// ErrStatusConflict is returned when a job already holds a different terminal status
	ErrStatusConflict = errors.New("job already has a different terminal status")

	// ErrInvalidStatus is returned when updating to a non-terminal status
	ErrInvalidStatus = errors.New("status update must target a terminal status")
)

// Job is the status record of one asynchronous job. Action is empty when
// the request carried none.
type Job struct {
	JobID     string `db:"job_id" json:"job_id" dynamodbav:"job_id"`
	UserID    string `db:"user_id" json:"user_id" dynamodbav:"user_id"`
	Action    string `db:"action" json:"action,omitempty" dynamodbav:"action,omitempty"`
	Status    Status `db:"status" json:"status" dynamodbav:"status"`
	CreatedAt int64  `db:"created_at" json:"created_at" dynamodbav:"created_at"`
}

// Store persists job records. UpdateStatus touches the status attribute only
// and is idempotent: repeating the same terminal status succeeds, moving a
// job between terminal statuses yields ErrStatusConflict.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	UpdateStatus(ctx context.Context, jobID string, status Status) error
}
