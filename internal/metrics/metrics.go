package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequests counts calls to the REST backend by endpoint and outcome.
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "backend_requests_total",
		Help:      "Requests sent to the REST backend.",
	}, []string{"endpoint", "outcome"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dashboard",
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of REST backend requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	AttendanceExports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "attendance_exports_total",
		Help:      "CSV exports generated, by format.",
	}, []string{"format"})

	SkippedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "attendance_skipped_records_total",
		Help:      "Attendance records dropped because their date could not be parsed.",
	})

	ImportJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "roster_import_jobs_total",
		Help:      "Bulk student import jobs by final status.",
	}, []string{"status"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
