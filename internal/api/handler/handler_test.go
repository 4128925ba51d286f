package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/storage"
	"github.com/cuongbtq/async-job-service/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (s *fakeSender) Send(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, body)
	return nil
}

type faultyStore struct {
	*storage.MemoryStore
	createErr error
	deleteErr error
	getErr    error
}

func (s *faultyStore) CreateJob(ctx context.Context, job *storage.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.MemoryStore.CreateJob(ctx, job)
}

func (s *faultyStore) DeleteJob(ctx context.Context, jobID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.DeleteJob(ctx, jobID)
}

func (s *faultyStore) GetJob(ctx context.Context, jobID string) (*storage.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.GetJob(ctx, jobID)
}

var fixedNow = time.Unix(1700000000, 0)

func newTestEngine(store storage.Store, sender queue.Sender) *gin.Engine {
	deps := &Dependencies{
		Logger: logger.Discard(),
		Store:  store,
		Queue:  sender,
		Now:    func() time.Time { return fixedNow },
	}

	r := gin.New()
	jobHandler := NewJobHandler(deps)
	syncHandler := NewSyncHandler(deps)
	r.POST("/api/v1/jobs", jobHandler.CreateJob)
	r.GET("/api/v1/jobs/:job_id", jobHandler.GetJob)
	r.POST("/api/v1/sync", syncHandler.Handle)
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
