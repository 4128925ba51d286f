package handler

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/storage"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Store  storage.Store
	Queue  queue.Sender

	// NewJobID and Now default to random UUIDs and the wall clock
	NewJobID func() string
	Now      func() time.Time
}

// JobHandler handles job intake and lookup
type JobHandler struct {
	logger   *slog.Logger
	store    storage.Store
	queue    queue.Sender
	newJobID func() string
	now      func() time.Time
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	h := &JobHandler{
		logger:   deps.Logger,
		store:    deps.Store,
		queue:    deps.Queue,
		newJobID: deps.NewJobID,
		now:      deps.Now,
	}

	if h.newJobID == nil {
		h.newJobID = uuid.NewString
	}
	if h.now == nil {
		h.now = time.Now
	}

	return h
}

// SyncHandler answers synchronous actions without touching any backend
type SyncHandler struct {
	logger *slog.Logger
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(deps *Dependencies) *SyncHandler {
	return &SyncHandler{
		logger: deps.Logger,
	}
}
