package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "subsidy_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	poolOpsTotal   *prometheus.CounterVec
	poolOpLatency  *prometheus.HistogramVec
	reportsTotal   *prometheus.CounterVec
	reportLatency  *prometheus.HistogramVec
	claimsTotal    *prometheus.CounterVec
	claimLatency   *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	authRejections *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		poolOpsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pool_operations_total",
				Help: "Total pool account operations by operation and result",
			},
			[]string{"op", "result"},
		)
		poolOpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pool_operation_latency_seconds",
				Help:    "Pool account operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)

		reportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "oracle_reports_total",
				Help: "Total oracle report submissions by result",
			},
			[]string{"result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "oracle_report_latency_seconds",
				Help:    "Oracle report admission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		claimsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "claims_total",
				Help: "Total subsidy claim attempts by result",
			},
			[]string{"result"},
		)
		claimLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "claim_latency_seconds",
				Help:    "Subsidy claim latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		)

		authRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "auth_rejections_total",
				Help: "Total rejected requests by reason",
			},
			[]string{"reason"},
		)

		prometheus.MustRegister(
			poolOpsTotal,
			poolOpLatency,
			reportsTotal,
			reportLatency,
			claimsTotal,
			claimLatency,
			httpRequests,
			httpLatency,
			authRejections,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func resultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// ObservePoolOp records a pool operation's latency and result.
func ObservePoolOp(op string, err error, duration time.Duration) {
	if op == "" {
		op = "unknown"
	}
	result := resultOf(err)
	if poolOpsTotal != nil {
		poolOpsTotal.WithLabelValues(op, result).Inc()
	}
	if poolOpLatency != nil {
		poolOpLatency.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// ObserveReport records a report admission's latency and result.
func ObserveReport(err error, duration time.Duration) {
	result := resultOf(err)
	if reportsTotal != nil {
		reportsTotal.WithLabelValues(result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveClaim records a claim attempt's latency and result.
func ObserveClaim(err error, duration time.Duration) {
	result := resultOf(err)
	if claimsTotal != nil {
		claimsTotal.WithLabelValues(result).Inc()
	}
	if claimLatency != nil {
		claimLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, path, statusLabel(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, path).Observe(duration.Seconds())
	}
}

// IncAuthRejection counts a rejected request.
func IncAuthRejection(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if authRejections != nil {
		authRejections.WithLabelValues(reason).Inc()
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
