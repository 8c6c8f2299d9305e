package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued     = prometheus.NewCounter(prometheus.CounterOpts{Name: "shorts_jobs_enqueued_total", Help: "Jobs created from new source videos"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "shorts_jobs_completed_total", Help: "Jobs that produced and published a short"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "shorts_jobs_failed_total", Help: "Jobs that ended in the failed state"})
	WorkerErrors     = prometheus.NewCounter(prometheus.CounterOpts{Name: "shorts_worker_errors_total", Help: "Worker loop infrastructure errors (store unreachable etc.)"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "shorts_rate_limit_rejects_total", Help: "Enqueue requests rejected by the rate limiter"})
	JobsInFlight     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "shorts_jobs_inflight", Help: "Jobs currently being processed"})
	JobsPending      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "shorts_jobs_pending", Help: "Jobs waiting to be claimed"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsCompleted,
			JobsFailed,
			WorkerErrors,
			RateLimitRejects,
			JobsInFlight,
			JobsPending,
		)
	})
	return promhttp.Handler()
}
