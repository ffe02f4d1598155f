// metrics.go - Prometheus instrumentation for the HTTP API
package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lula_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	jobsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lula_extract_jobs_started_total",
			Help: "Extraction jobs started, by mode.",
		},
		[]string{"mode"},
	)

	chunkQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lula_chunk_queries_total",
			Help: "Sample chunk queries served.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration, jobsStartedTotal, chunkQueriesTotal)
}

func recordJobStarted(mode string) {
	jobsStartedTotal.WithLabelValues(mode).Inc()
}

func recordChunkQuery() {
	chunkQueriesTotal.Inc()
}

// MetricsMiddleware records request latency per route. Streaming endpoints
// are skipped so long-lived connections do not distort the histogram.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "/metrics" || isStreamingPath(path) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if apiErr, ok := err.(*APIError); ok {
				status = apiErr.Status
			}
			httpRequestDuration.WithLabelValues(
				c.Request().Method, path, strconv.Itoa(status),
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func isStreamingPath(path string) bool {
	switch path {
	case "/api/jobs/:jobId/progress", "/api/jobs/:jobId/ws":
		return true
	}
	return false
}

// MetricsHandler exposes the Prometheus scrape endpoint
func MetricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
