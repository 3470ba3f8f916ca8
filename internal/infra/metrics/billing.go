package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookEventsTotal,
		paymentsTotal,
		refundsAmountTotal,
		sessionSyncTotal,
		subscriptionsExpiredTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Provider webhook events by type and outcome (applied/duplicate/ignored/failed).",
		},
		[]string{"type", "outcome"},
	)

	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_payments_total",
			Help: "Payment transitions by resulting status.",
		},
		[]string{"status"},
	)

	refundsAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_refunds_amount_total",
			Help: "Cumulative refunded amount in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	sessionSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_session_sync_total",
			Help: "Pull-path session syncs by outcome (ok/unauthorized/unpaid/not_found/upstream/error).",
		},
		[]string{"outcome"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_subscriptions_expired_total",
			Help: "Subscriptions transitioned to expired by the lapse worker.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddRefundAmount(currency string, amount int64) {
	refundsAmountTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncSessionSync(outcome string) {
	sessionSyncTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncSubscriptionsExpired(n int) {
	subscriptionsExpiredTotal.Add(float64(n))
}
