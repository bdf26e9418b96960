package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantops_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plantops_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Booking allocation
	bookingsAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantops_bookings_allocated_total",
			Help: "Bookings successfully allocated, by product class",
		},
		[]string{"class"},
	)

	bookingAllocationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantops_booking_allocation_failures_total",
			Help: "Rejected allocation attempts, by error kind",
		},
		[]string{"kind"},
	)

	bookingCodeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plantops_booking_code_retries_total",
			Help: "Inserts retried after a booking code collision",
		},
	)

	// Approval engine
	approvalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantops_approval_transitions_total",
			Help: "Approval request transitions, by audit action",
		},
		[]string{"action"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantops_approval_sweep_runs_total",
			Help: "Expiry sweep runs, by outcome",
		},
		[]string{"outcome"},
	)

	// Notifications
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantops_notifications_total",
			Help: "Notification deliveries, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	if statusCode >= 200 && statusCode < 300 {
		status = "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		status = "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		status = "4xx"
	} else if statusCode >= 500 {
		status = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// BookingAllocated counts a committed allocation for class ("U" or "C").
func BookingAllocated(class string) {
	bookingsAllocated.WithLabelValues(class).Inc()
}

// BookingAllocationFailed counts an allocation rejected with the given kind.
func BookingAllocationFailed(kind string) {
	bookingAllocationFailures.WithLabelValues(kind).Inc()
}

func BookingCodeRetried() {
	bookingCodeRetries.Inc()
}

// ApprovalTransition counts one committed audit action.
func ApprovalTransition(action string) {
	approvalTransitions.WithLabelValues(action).Inc()
}

// SweepRun records the outcome of one expiry sweep ("ok", "error" or "cancelled").
func SweepRun(outcome string) {
	sweepRuns.WithLabelValues(outcome).Inc()
}

// NotificationDelivered records a delivery attempt on channel ("inapp", "webpush").
func NotificationDelivered(channel, outcome string) {
	notificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
