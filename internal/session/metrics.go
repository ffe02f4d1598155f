// metrics.go - Prometheus instrumentation for extraction jobs
package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alonraif/NGL-sub000/internal/models"
)

var (
	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lula_extract_jobs_finished_total",
			Help: "Extraction jobs finished, by terminal status.",
		},
		[]string{"status"},
	)

	jobDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lula_extract_job_duration_seconds",
			Help:    "Wall time of completed extraction jobs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lula_result_cache_hits_total",
			Help: "Extraction jobs served from the result cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsFinishedTotal, jobDurationSeconds, cacheHitsTotal)
}

func recordJobFinished(status models.JobStatus, elapsedMs int64) {
	jobsFinishedTotal.WithLabelValues(string(status)).Inc()
	if status == models.JobStatusComplete {
		jobDurationSeconds.Observe(float64(elapsedMs) / 1000)
	}
}
