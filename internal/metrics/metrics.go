// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classattend_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	Enrollments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_enrollments_total",
		Help: "Enrollment rows created, by mode (single or bulk).",
	}, []string{"mode"})

	AttendanceMarked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_attendance_marked_total",
		Help: "Attendance rows written, by status.",
	}, []string{"status"})

	QrCodesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classattend_qr_codes_issued_total",
		Help: "QR codes generated.",
	})

	QrCodesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classattend_qr_codes_expired_total",
		Help: "QR codes deactivated by the expiry job.",
	})

	RosterCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_roster_cache_total",
		Help: "Roster cache lookups by result (hit or miss).",
	}, []string{"result"})

	EventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_worker_events_total",
		Help: "Queue events handled by the worker, by type and outcome.",
	}, []string{"type", "outcome"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		Enrollments,
		AttendanceMarked,
		QrCodesIssued,
		QrCodesExpired,
		RosterCache,
		EventsProcessed,
	)
}
