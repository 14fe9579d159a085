package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 出站请求指标
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_requests_total",
			Help: "Total number of pipeline requests by resource category and outcome",
		},
		[]string{"category", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskboard_request_duration_seconds",
			Help:    "End-to-end pipeline request latency including retries and replays",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"category"},
	)

	// 并发请求数
	InFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskboard_inflight_requests",
			Help: "Number of outstanding requests by resource category",
		},
		[]string{"category"},
	)

	// 凭证刷新指标
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_refreshes_total",
			Help: "Refresh episodes by result (success, failure, skipped, aborted)",
		},
		[]string{"result"},
	)

	RefreshWaiters = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskboard_refresh_waiters",
			Help:    "Number of queued requests released per refresh episode",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		},
	)

	ReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskboard_replays_total",
			Help: "Requests replayed with a refreshed credential",
		},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_retry_attempts_total",
			Help: "Silent retry attempts by error category",
		},
		[]string{"category"},
	)

	// 存储指标
	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_storage_operations_total",
			Help: "Session storage operations by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskboard_storage_operation_duration_seconds",
			Help:    "Session storage operation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)
)

// RecordRequest records the final outcome of one pipeline request.
func RecordRequest(category, outcome string, d time.Duration) {
	RequestsTotal.WithLabelValues(category, outcome).Inc()
	RequestDuration.WithLabelValues(category).Observe(d.Seconds())
}

// RecordRefresh records the resolution of a refresh episode.
func RecordRefresh(result string, waiters int) {
	RefreshesTotal.WithLabelValues(result).Inc()
	RefreshWaiters.Observe(float64(waiters))
}

// RecordStorageOperation records one backend call.
func RecordStorageOperation(backend, operation string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StorageOperations.WithLabelValues(backend, operation, result).Inc()
	StorageDuration.WithLabelValues(backend, operation).Observe(d.Seconds())
}
