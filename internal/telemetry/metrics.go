package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Intake results
const (
	IntakeAccepted      = "accepted"
	IntakeBadRequest    = "bad_request"
	IntakeStoreFailed   = "store_failed"
	IntakeEnqueueFailed = "enqueue_failed"
)

var (
	once sync.Once

	IntakeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_intake_total",
		Help: "Async job requests by result",
	}, []string{"result"})

	SyncRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_requests_total",
		Help: "Synchronous requests by action and status code",
	}, []string{"action", "code"})

	WorkerJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_jobs_total",
		Help: "Processed queue messages by outcome",
	}, []string{"outcome"})

	WorkerBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "worker_batch_size",
		Help:    "Messages per received batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})

	NotificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_published_total",
		Help: "Notifications published by topic",
	}, []string{"topic"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			IntakeTotal,
			SyncRequests,
			WorkerJobs,
			WorkerBatchSize,
			NotificationsPublished,
		)
	})
	return promhttp.Handler()
}
