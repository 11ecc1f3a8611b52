package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paygate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_webhooks_total",
			Help: "Inbound gateway notifications by outcome",
		},
		[]string{"gateway", "outcome"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_transaction_transitions_total",
			Help: "Applied transaction status transitions",
		},
		[]string{"from", "to"},
	)

	ChargesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_charges_total",
			Help: "Charge initiations by gateway and result",
		},
		[]string{"gateway", "result"},
	)

	BillingChargesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_billing_charges_total",
			Help: "Recurring charge attempts by outcome",
		},
		[]string{"outcome"},
	)

	BillingSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paygate_billing_sweep_duration_seconds",
			Help:    "Billing sweep duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	BenefitGrantsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paygate_benefit_grants_total",
			Help: "Benefit grants handed out for completed transactions",
		},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordWebhook records the outcome of an inbound notification
func RecordWebhook(gateway, outcome string) {
	WebhooksTotal.WithLabelValues(gateway, outcome).Inc()
}

// RecordTransition records an applied status transition
func RecordTransition(from, to string) {
	TransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordCharge records a charge initiation
func RecordCharge(gateway string, success bool) {
	result := "failed"
	if success {
		result = "ok"
	}
	ChargesTotal.WithLabelValues(gateway, result).Inc()
}

// RecordBillingCharge records a recurring charge outcome
func RecordBillingCharge(outcome string) {
	BillingChargesTotal.WithLabelValues(outcome).Inc()
}

// RecordSweepDuration records how long a billing sweep took
func RecordSweepDuration(seconds float64) {
	BillingSweepDuration.Observe(seconds)
}

// RecordBenefitGrant records a benefit grant
func RecordBenefitGrant() {
	BenefitGrantsTotal.Inc()
}
