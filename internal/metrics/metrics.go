package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts notifications by gateway type and ingestion outcome
	// (stored, duplicate, rejected, store_failed).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_webhook_events_total",
		Help: "Gateway notifications received, by type and outcome",
	}, []string{"type", "outcome"})

	// SweepRecords counts per-record results of the recurring boleto sweep.
	SweepRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_boleto_sweep_records_total",
		Help: "Recurring boleto records handled by the sweep, by outcome",
	}, []string{"outcome"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "donation_boleto_sweep_duration_seconds",
		Help:    "Duration of a full recurring boleto sweep",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300, 900},
	})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_gateway_requests_total",
		Help: "Payment gateway calls, by operation and outcome",
	}, []string{"op", "outcome"})

	// ExchangeRateFallbacks grows every time the fixed fallback rate is served.
	ExchangeRateFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "donation_exchange_rate_fallbacks_total",
		Help: "Exchange rate lookups answered with the fallback rate",
	})

	Emails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_emails_total",
		Help: "Notification emails, by kind and outcome",
	}, []string{"kind", "outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_http_requests_total",
		Help: "HTTP requests served, by method and status code",
	}, []string{"method", "status"})

	// DBStatements is keyed by the statement's audit marker, never its text.
	DBStatements = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "donation_db_statement_duration_seconds",
		Help:    "Duration of marked SQL statements, by marker and outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"marker", "outcome"})

	// BrokerHealthy is 1 while the events broker connection is up.
	BrokerHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "donation_events_broker_healthy",
		Help: "Events broker connection health (1 healthy, 0 down)",
	})
)

// Outcome maps an error onto the "ok"/"error" label pair.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
