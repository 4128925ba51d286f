package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore keeps job records in a single PostgreSQL table
type PostgresStore struct {
	db     *sqlx.DB
	table  string
	logger *slog.Logger

	insertQuery string
	selectQuery string
	deleteQuery string
	updateQuery string
	statusQuery string
}

// NewPostgresStore creates a store on the given table. The table name is
// quoted, callers still validate it as an identifier.
func NewPostgresStore(db *sqlx.DB, table string, logger *slog.Logger) *PostgresStore {
	t := pq.QuoteIdentifier(table)

	return &PostgresStore{
		db:     db,
		table:  t,
		logger: logger,

		insertQuery: fmt.Sprintf(`
		INSERT INTO %s (job_id, user_id, action, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`, t),
		selectQuery: fmt.Sprintf(`
		SELECT job_id, user_id, action, status, created_at
		FROM %s
		WHERE job_id = $1`, t),
		deleteQuery: fmt.Sprintf(`DELETE FROM %s WHERE job_id = $1`, t),
		updateQuery: fmt.Sprintf(`
		UPDATE %s
		SET status = $1
		WHERE job_id = $2
		  AND status IN ($3, $1)`, t),
		statusQuery: fmt.Sprintf(`SELECT status FROM %s WHERE job_id = $1`, t),
	}
}

// EnsureSchema creates the jobs table when it does not exist yet
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			job_id     TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			action     TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure jobs table: %w", err)
	}

	return nil
}

// CreateJob inserts a new record
func (s *PostgresStore) CreateJob(ctx context.Context, job *Job) error {
	_, err := s.db.ExecContext(ctx, s.insertQuery,
		job.JobID,
		job.UserID,
		job.Action,
		job.Status,
		job.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrJobExists
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob loads a record by id
func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.db.GetContext(ctx, &job, s.selectQuery, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// DeleteJob removes a record; deleting a missing record is not an error
func (s *PostgresStore) DeleteJob(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, jobID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// UpdateStatus sets the status column when the job is pending or already
// holds the same status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, jobID string, status Status) error {
	if !status.IsTerminal() {
		return ErrInvalidStatus
	}

	result, err := s.db.ExecContext(ctx, s.updateQuery, status, jobID, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return nil
	}

	// Nothing matched: either the job is missing or it is terminal already.
	var current Status
	if err := s.db.GetContext(ctx, &current, s.statusQuery, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to read job status: %w", err)
	}

	if current == status {
		return nil
	}

	s.logger.Warn("Job status update rejected",
		slog.String("job_id", jobID),
		slog.String("current_status", string(current)),
		slog.String("requested_status", string(status)),
	)

	return fmt.Errorf("%w: job is %s", ErrStatusConflict, current)
}
