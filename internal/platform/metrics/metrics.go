// Package metrics registers the Prometheus collectors shared by the
// reconciler and the admin API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sms_reconciler"

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Reconciliation ticks started",
	})

	TickErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tick_errors_total",
		Help:      "Reconciliation ticks that could not list pending batches",
	})

	GatewayPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_polls_total",
		Help:      "Gateway status polls by result",
	}, []string{"result"})

	GatewayPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_poll_duration_seconds",
		Help:      "Gateway status poll latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_outcomes_total",
		Help:      "Per-batch reconciliation outcomes",
	}, []string{"outcome"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Committed terminal transitions by target state",
	}, []string{"state"})

	RefundedCreditTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refunded_credit_total",
		Help:      "Credit returned to owners by refunds",
	})

	StaleBatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stale_batches",
		Help:      "Pending batches older than the reconciliation window at the last tick",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Outcome notifications by channel and result",
	}, []string{"channel", "result"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Admin API requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Admin API request latency",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
