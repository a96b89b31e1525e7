package api

import (
	"fmt"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flock",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by method, path and status class.",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flock",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// idSegment matches path segments that are entity ids (hex object ids or
// UUIDs) so the path label stays low-cardinality.
var idSegment = regexp.MustCompile(`/[0-9a-fA-F]{24}|/[0-9a-fA-F-]{36}`)

// metricPath collapses entity ids so one route yields one label value.
func metricPath(path string) string {
	return idSegment.ReplaceAllString(path, "/:id")
}

// observeRequest records one completed (or failed-to-send) request.
// status 0 means the request never reached the server.
func observeRequest(method, path string, status int, elapsed time.Duration) {
	class := "error"
	if status > 0 {
		class = fmt.Sprintf("%dxx", status/100)
	}
	route := metricPath(path)
	requestsTotal.WithLabelValues(method, route, class).Inc()
	requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
