package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "goodboy"

// BusinessMetrics holds store-level Prometheus metrics.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutSessions *prometheus.CounterVec
	StripeAPILatency *prometheus.HistogramVec

	// Orders
	OrdersCreated  *prometheus.CounterVec
	OrderValue     prometheus.Histogram
	OrderItemCount prometheus.Histogram
	StatusChanges  *prometheus.CounterVec

	// Inventory
	StockOversold      *prometheus.CounterVec
	StockOversoldUnits prometheus.Counter

	// Webhooks
	WebhookReceived   *prometheus.CounterVec
	WebhookDuplicates *prometheus.CounterVec
	WebhookFailures   *prometheus.CounterVec

	// Catalog cache
	CatalogCache *prometheus.CounterVec

	// Auth
	Signups     prometheus.Counter
	Logins      prometheus.Counter
	LoginFailed prometheus.Counter

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec

	// Email delivery
	EmailSent   *prometheus.CounterVec
	EmailFailed *prometheus.CounterVec
}

// NewBusinessMetrics registers the metrics with reg. Tests pass a fresh
// prometheus.NewRegistry().
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	f := promauto.With(reg)
	subsystem := "business"

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	plain := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &BusinessMetrics{
		CheckoutSessions: counter("checkout_sessions_total",
			"Checkout session attempts by result", "result"), // created, insufficient_stock, invalid, error
		StripeAPILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stripe_api_duration_seconds",
			Help:      "Stripe API call duration",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		OrdersCreated: counter("orders_created_total", "Orders created by source", "source"),
		OrderValue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_value",
			Help:      "Order total in store currency",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		OrderItemCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_item_count",
			Help:      "Units per order",
			Buckets:   []float64{1, 2, 3, 5, 10, 20},
		}),
		StatusChanges: counter("order_status_changes_total", "Fulfillment transitions", "status"),

		StockOversold: counter("stock_oversold_total",
			"Decrements clamped at zero because stock ran out after payment", "product_id"),
		StockOversoldUnits: plain("stock_oversold_units_total", "Units sold beyond available stock"),

		WebhookReceived:   counter("webhooks_received_total", "Verified webhook events", "event_type"),
		WebhookDuplicates: counter("webhook_duplicates_total", "Webhook deliveries skipped as duplicates", "key"),
		WebhookFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_failures_total",
			Help:      "Post-verification webhook failures masked as success",
		}, []string{"stage"}),

		CatalogCache: counter("catalog_cache_total", "Catalog cache lookups", "result"),

		Signups:     plain("signups_total", "Accounts registered"),
		Logins:      plain("logins_total", "Successful logins"),
		LoginFailed: plain("login_failures_total", "Failed logins"),

		JobsEnqueued:  counter("jobs_enqueued_total", "Background jobs enqueued", "job_type"),
		JobsProcessed: counter("jobs_processed_total", "Background jobs completed", "job_type"),
		JobsFailed:    counter("jobs_failed_total", "Background jobs failed", "job_type"),

		EmailSent:   counter("emails_sent_total", "Emails delivered", "template"),
		EmailFailed: counter("email_failures_total", "Email delivery failures", "template"),
	}
}

// NewTestMetrics registers against a private registry.
func NewTestMetrics() *BusinessMetrics {
	return NewBusinessMetrics(prometheus.NewRegistry())
}
