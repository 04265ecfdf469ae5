// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LockAcquireTotal counts lock and lease acquisition attempts by kind
	// (expiring, lease) and status (acquired, contended, error).
	LockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvcoord_lock_acquire_total",
			Help: "Total lock acquisition attempts by kind and status",
		},
		[]string{"kind", "status"},
	)

	// LockReleaseTotal counts token-matched releases that removed a key.
	LockReleaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvcoord_lock_release_total",
			Help: "Total lock releases by kind",
		},
		[]string{"kind"},
	)

	// LeaseWaitDuration tracks how long InLock blocked before obtaining or giving up.
	LeaseWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvcoord_lease_wait_duration_seconds",
			Help:    "Time spent waiting for an exclusive lease",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"outcome"},
	)

	// ActionsThrottled counts rate-limited actions that were rejected.
	ActionsThrottled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvcoord_actions_throttled_total",
			Help: "Total actions rejected by the action rate limiter",
		},
		[]string{"action"},
	)

	// ReferenceUnderflows counts reference counters reset after going negative.
	ReferenceUnderflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kvcoord_reference_underflow_total",
			Help: "Total reference counters reset after a decrease below zero",
		},
	)

	// ReferenceStoreErrors counts reference counter operations that failed in the store.
	ReferenceStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvcoord_reference_store_errors_total",
			Help: "Total reference counter operations that failed in the store",
		},
		[]string{"operation"},
	)

	// JobWaitDuration tracks how long JobWaiter.Wait blocked, by outcome
	// (completed, timeout, canceled).
	JobWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvcoord_job_wait_duration_seconds",
			Help:    "Time spent waiting for dispatched jobs",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	// HTTPRequestsTotal tracks total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RegisterMetricsEndpoint registers the /metrics endpoint on a Gin router.
func RegisterMetricsEndpoint(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RecordLockAcquire records a lock acquisition attempt.
func RecordLockAcquire(kind, status string) {
	LockAcquireTotal.WithLabelValues(kind, status).Inc()
}

// RecordLockRelease records a successful release.
func RecordLockRelease(kind string) {
	LockReleaseTotal.WithLabelValues(kind).Inc()
}

// RecordLeaseWait records the time InLock spent acquiring.
func RecordLeaseWait(outcome string, seconds float64) {
	LeaseWaitDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordActionThrottled records a throttled action.
func RecordActionThrottled(action string) {
	ActionsThrottled.WithLabelValues(action).Inc()
}

// RecordReferenceUnderflow records a reference counter reset.
func RecordReferenceUnderflow() {
	ReferenceUnderflows.Inc()
}

// RecordReferenceStoreError records a failed reference counter operation.
func RecordReferenceStoreError(operation string) {
	ReferenceStoreErrors.WithLabelValues(operation).Inc()
}

// RecordJobWait records a finished JobWaiter.Wait call.
func RecordJobWait(outcome string, seconds float64) {
	JobWaitDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(method, path string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
