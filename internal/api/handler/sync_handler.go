package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/async-job-service/internal/api/domain"
	"github.com/cuongbtq/async-job-service/internal/api/dto"
	"github.com/cuongbtq/async-job-service/internal/telemetry"
)

// Handle handles POST /api/v1/sync
// Answers a closed set of actions immediately, nothing is persisted
func (h *SyncHandler) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, "", http.StatusBadRequest, domain.MsgInvalidRequestBody)
		return
	}

	fields, err := dto.ParseFields(body)
	if err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		h.respondError(c, "", http.StatusBadRequest, domain.MsgInvalidRequestBody)
		return
	}

	raw, _ := fields.Text("action")

	action, ok := domain.ParseSyncAction(raw)
	if !ok {
		h.logger.Info("Unknown synchronous action", slog.String("action", raw))
		h.respondError(c, "unknown", http.StatusBadRequest, domain.MsgUnknownSyncAction)
		return
	}

	var message string
	switch action {
	case domain.SyncActionLogin:
		message = fmt.Sprintf("User %s logged in successfully.", fields.TextOr("username", domain.NullText))
	case domain.SyncActionCheckSubscription:
		message = fmt.Sprintf("Subscription %s is active.", fields.TextOr("subscription_id", domain.NullText))
	}

	telemetry.SyncRequests.WithLabelValues(string(action), strconv.Itoa(http.StatusOK)).Inc()
	c.JSON(http.StatusOK, dto.MessageResponse{Message: message})
}

func (h *SyncHandler) respondError(c *gin.Context, action string, code int, message string) {
	if action == "" {
		action = "invalid"
	}
	telemetry.SyncRequests.WithLabelValues(action, strconv.Itoa(code)).Inc()
	c.JSON(code, dto.ErrorResponse{Error: message})
}
