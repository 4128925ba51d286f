// Package ops serves the worker's operational endpoints.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuongbtq/async-job-service/internal/telemetry"
)

const healthTimeout = 2 * time.Second

// HealthFunc reports whether the process dependencies are reachable
type HealthFunc func(ctx context.Context) error

// Router builds the ops router: /healthz and /metrics
func Router(serviceName string, health HealthFunc) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()

		status, code := "healthy", http.StatusOK
		body := map[string]string{"service": serviceName}

		if health != nil {
			if err := health(ctx); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
				body["error"] = err.Error()
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})

	r.Mount("/metrics", telemetry.Handler())

	return r
}
