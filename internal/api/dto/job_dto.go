package dto

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/cuongbtq/async-job-service/internal/storage"
)

// ErrNotObject is returned when a request body is not a JSON object
var ErrNotObject = errors.New("request body must be a JSON object")

// Fields is a decoded request body. Values keep their raw JSON so the
// original body can be forwarded untouched.
type Fields map[string]json.RawMessage

// ParseFields decodes a request body; an empty body is an empty object
func ParseFields(body []byte) (Fields, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Fields{}, nil
	}

	var fields Fields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, ErrNotObject
	}
	if fields == nil {
		// the literal null
		return nil, ErrNotObject
	}

	return fields, nil
}

// Text renders a field as text: strings verbatim, anything else as its
// JSON text. ok is false when the field is absent or null.
func (f Fields) Text(key string) (text string, ok bool) {
	raw, present := f[key]
	if !present {
		return "", false
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	return string(raw), true
}

// TextOr renders a field as text, falling back when absent or null
func (f Fields) TextOr(key, fallback string) string {
	if text, ok := f.Text(key); ok {
		return text
	}
	return fallback
}

// AcceptedResponse is the body of a 202 from the intake endpoint
type AcceptedResponse struct {
	Message string         `json:"message"`
	JobID   string         `json:"job_id"`
	Status  storage.Status `json:"status"`
}

// MessageResponse is the body of a successful sync request
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error string `json:"error"`
}

// JobDTO is the job record as returned by the lookup endpoint
type JobDTO struct {
	JobID     string         `json:"job_id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action,omitempty"`
	Status    storage.Status `json:"status"`
	CreatedAt int64          `json:"created_at"`
}

// NewJobDTO converts a stored job record
func NewJobDTO(job *storage.Job) JobDTO {
	return JobDTO{
		JobID:     job.JobID,
		UserID:    job.UserID,
		Action:    job.Action,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}
}
