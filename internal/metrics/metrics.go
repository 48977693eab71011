// Package metrics exposes Prometheus counters for the job pipeline.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts finished jobs by kind and outcome. Kind is
	// "backup" or "restore"; outcome is derived from the job log since the
	// queue has no failed status.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursearc_jobs_processed_total",
		Help: "Jobs processed, by kind and whether the log shows success.",
	}, []string{"kind", "succeeded"})

	// JobDuration observes wall-clock job processing time.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coursearc_job_duration_seconds",
		Help:    "Time spent processing a single job.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"kind"})

	// BytesTransferred counts artifact bytes moved, by direction
	// ("upload", "download", "local_copy").
	BytesTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursearc_bytes_transferred_total",
		Help: "Artifact bytes moved between storage destinations.",
	}, []string{"direction"})

	// JobsReclaimed counts stale initiated jobs pushed back to waiting.
	JobsReclaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursearc_jobs_reclaimed_total",
		Help: "Stale jobs returned to the waiting state.",
	}, []string{"kind"})
)

// ObserveJob records one finished job.
func ObserveJob(kind string, succeeded bool, seconds float64) {
	JobsProcessed.WithLabelValues(kind, strconv.FormatBool(succeeded)).Inc()
	JobDuration.WithLabelValues(kind).Observe(seconds)
}
