package ops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouter_Healthz(t *testing.T) {
	tests := []struct {
		name     string
		health   HealthFunc
		wantCode int
		wantBody string
	}{
		{
			name:     "no checks",
			wantCode: http.StatusOK,
			wantBody: `{"service":"job-worker-service","status":"healthy"}`,
		},
		{
			name:     "dependencies reachable",
			health:   func(context.Context) error { return nil },
			wantCode: http.StatusOK,
			wantBody: `{"service":"job-worker-service","status":"healthy"}`,
		},
		{
			name:     "dependency down",
			health:   func(context.Context) error { return errors.New("not connected to RabbitMQ") },
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"service":"job-worker-service","status":"unhealthy","error":"not connected to RabbitMQ"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Router("job-worker-service", tt.health).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	w := httptest.NewRecorder()
	Router("job-worker-service", nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
