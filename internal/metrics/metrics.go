package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lmsledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsledger_payments_total",
			Help: "Payments by lifecycle outcome and method",
		},
		[]string{"outcome", "method"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsledger_payment_transitions_total",
			Help: "Payment status transitions by target status and kind",
		},
		[]string{"to", "kind"},
	)

	InsufficientFundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsledger_insufficient_funds_total",
			Help: "Operations rejected for insufficient wallet or cashbox funds",
		},
		[]string{"method"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsledger_events_total",
			Help: "Payment events by type and delivery status",
		},
		[]string{"type", "status"},
	)

	EventQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lmsledger_event_queue_length",
			Help: "Current length of the payment event queue",
		},
	)

	SweepResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsledger_sweep_results_total",
			Help: "Stale pending payments handled by the sweeper",
		},
		[]string{"result"},
	)

	PendingPayments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lmsledger_pending_payments",
			Help: "Pending payments by age bucket",
		},
		[]string{"age"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPayment(outcome, method string) {
	PaymentsTotal.WithLabelValues(outcome, method).Inc()
}

func RecordTransition(to, kind string) {
	TransitionsTotal.WithLabelValues(to, kind).Inc()
}

func RecordInsufficientFunds(method string) {
	InsufficientFundsTotal.WithLabelValues(method).Inc()
}

func RecordEvent(eventType, status string) {
	EventsTotal.WithLabelValues(eventType, status).Inc()
}

func RecordSweep(result string, n int) {
	SweepResultsTotal.WithLabelValues(result).Add(float64(n))
}

func SetPending(total, over1h, over24h int64) {
	PendingPayments.WithLabelValues("all").Set(float64(total))
	PendingPayments.WithLabelValues("1h").Set(float64(over1h))
	PendingPayments.WithLabelValues("24h").Set(float64(over24h))
}
