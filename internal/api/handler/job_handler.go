package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/async-job-service/internal/api/domain"
	"github.com/cuongbtq/async-job-service/internal/api/dto"
	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/storage"
	"github.com/cuongbtq/async-job-service/internal/telemetry"
)

// CreateJob handles POST /api/v1/jobs
// Records a pending job, enqueues it for the workers and answers 202
func (h *JobHandler) CreateJob(c *gin.Context) {
	ctx := c.Request.Context()

	// 1. Read and decode the request body
	body, err := c.GetRawData()
	if err != nil {
		h.logger.Error("Failed to read request body", slog.String("error", err.Error()))
		telemetry.IntakeTotal.WithLabelValues(telemetry.IntakeBadRequest).Inc()
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: domain.MsgInvalidRequestBody})
		return
	}

	fields, err := dto.ParseFields(body)
	if err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		telemetry.IntakeTotal.WithLabelValues(telemetry.IntakeBadRequest).Inc()
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: domain.MsgInvalidRequestBody})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	action, _ := fields.Text("action")

	userID, _ := fields.Text("user_id")
	if userID == "" {
		userID = storage.DefaultUserID
	}

	job := &storage.Job{
		JobID:     h.newJobID(),
		UserID:    userID,
		Action:    action,
		Status:    storage.StatusPending,
		CreatedAt: h.now().Unix(),
	}

	logger := h.logger.With(
		slog.String("job_id", job.JobID),
		slog.String("action", job.Action),
	)

	// 2. Record the job as pending
	if err := h.store.CreateJob(ctx, job); err != nil {
		logger.Error("Failed to create job", slog.String("error", err.Error()))
		telemetry.IntakeTotal.WithLabelValues(telemetry.IntakeStoreFailed).Inc()
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: domain.MsgFailedToCreateJob})
		return
	}

	// 3. Enqueue the job; the pending record is removed again when this fails
	if err := h.enqueue(c, job, body); err != nil {
		logger.Error("Failed to enqueue job", slog.String("error", err.Error()))
		h.compensate(c, logger, job.JobID)
		telemetry.IntakeTotal.WithLabelValues(telemetry.IntakeEnqueueFailed).Inc()
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: domain.MsgFailedToEnqueueJob})
		return
	}

	logger.Info("Async job accepted", slog.String("user_id", job.UserID))
	telemetry.IntakeTotal.WithLabelValues(telemetry.IntakeAccepted).Inc()

	// 4. Acknowledge
	c.JSON(http.StatusAccepted, dto.AcceptedResponse{
		Message: fmt.Sprintf("Async job accepted for '%s'.", fields.TextOr("action", domain.NullText)),
		JobID:   job.JobID,
		Status:  job.Status,
	})
}

func (h *JobHandler) enqueue(c *gin.Context, job *storage.Job, body []byte) error {
	msg := &queue.Message{
		JobID:  job.JobID,
		Action: job.Action,
		Data:   json.RawMessage(body),
	}

	encoded, err := msg.Encode()
	if err != nil {
		return err
	}

	return h.queue.Send(c.Request.Context(), encoded)
}

// compensate deletes a pending record whose message was never enqueued
func (h *JobHandler) compensate(c *gin.Context, logger *slog.Logger, jobID string) {
	if err := h.store.DeleteJob(c.Request.Context(), jobID); err != nil {
		logger.Error("Failed to delete orphaned pending job, manual cleanup required",
			slog.String("error", err.Error()),
		)
		return
	}

	logger.Info("Deleted pending job after failed enqueue")
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves the current record of a job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	// 1. Validate job_id format (UUID)
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Warn("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "job_id must be a valid UUID"})
		return
	}

	// 2. Load the record
	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: domain.MsgJobNotFound})
			return
		}

		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get job"})
		return
	}

	// 3. Return job details
	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}
