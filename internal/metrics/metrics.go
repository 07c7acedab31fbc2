// Package metrics exposes Prometheus collectors for the intake service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissionsTotal           *prometheus.CounterVec
	captureDurationSeconds     prometheus.Histogram
	captureFailuresTotal       *prometheus.CounterVec
	capturesInflight           prometheus.Gauge
	notifyFailuresTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Capture failure stages recorded by the pipeline.
const (
	CaptureStageProbe    = "probe"
	CaptureStageBrowser  = "browser"
	CaptureStageArtifact = "artifact"
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_submissions_total",
				Help: "Total number of pipeline runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		captureDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "report_capture_duration_seconds",
				Help:    "Histogram of screenshot capture durations, successes only.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30},
			},
		)

		captureFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_capture_failures_total",
				Help: "Total capture failures, labeled by failing stage.",
			},
			[]string{"stage"},
		)

		capturesInflight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "report_captures_inflight",
				Help: "Number of browser capture sessions currently running.",
			},
		)

		notifyFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_notify_failures_total",
				Help: "Total notification delivery failures, labeled by channel.",
			},
			[]string{"channel"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSubmission increments the run counter for the given terminal status.
func ObserveSubmission(status string) {
	submissionsTotal.WithLabelValues(status).Inc()
}

// ObserveCaptureDuration records how long a successful capture took.
func ObserveCaptureDuration(duration time.Duration) {
	captureDurationSeconds.Observe(duration.Seconds())
}

// ObserveCaptureFailure increments the capture failure counter for the stage.
func ObserveCaptureFailure(stage string) {
	captureFailuresTotal.WithLabelValues(stage).Inc()
}

// IncCapturesInflight increments the inflight capture gauge.
func IncCapturesInflight() {
	capturesInflight.Inc()
}

// DecCapturesInflight decrements the inflight capture gauge.
func DecCapturesInflight() {
	capturesInflight.Dec()
}

// ObserveNotifyFailure increments the notification failure counter.
func ObserveNotifyFailure(channel string) {
	notifyFailuresTotal.WithLabelValues(channel).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
