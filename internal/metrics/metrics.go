// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcome labels.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodradar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodradar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Source fetch metrics
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodradar_source_fetch_total",
			Help: "Total number of source fetches by outcome",
		},
		[]string{"source", "status"},
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodradar_source_fetch_duration_seconds",
			Help:    "Source fetch duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"source"},
	)

	// Pipeline metrics
	PostsAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodradar_posts_analyzed_total",
			Help: "Total number of posts classified and scored",
		},
	)

	AnalyzeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodradar_analyze_duration_seconds",
			Help:    "End-to-end topic analysis duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodradar_application_info",
			Help: "Application information",
		},
		[]string{"version"},
	)
)

// Init records static application info.
func Init(version string) {
	ApplicationInfo.WithLabelValues(version).Set(1)
}
