package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the cart, order and payment funnel.
type BusinessMetrics struct {
	// Cart
	CartCreated  prometheus.Counter
	CartItemsAdd *prometheus.CounterVec
	CartUpdated  *prometheus.CounterVec
	CartCleared  prometheus.Counter
	CartValue    prometheus.Histogram

	// Orders
	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	OrderValue      prometheus.Histogram
	OrderItemCount  prometheus.Histogram

	// Payments
	PaymentAttempts    *prometheus.CounterVec
	PaymentSucceeded   *prometheus.CounterVec
	PaymentFailed      *prometheus.CounterVec
	PaymentDuplicates  *prometheus.CounterVec
	PaymentsExpired    prometheus.Counter
	PaymentAfterCancel prometheus.Counter
	SettledAfterClose  *prometheus.CounterVec
	RevenueCollected   *prometheus.CounterVec

	// Inventory
	StockDecrements *prometheus.CounterVec
	StockRejections *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// External API performance
	GatewayAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics registers the funnel metrics on reg. A nil reg means
// the default registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "gamersmart"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := metricFactory{auto: promauto.With(reg), namespace: namespace}

	return &BusinessMetrics{
		CartCreated:  f.counter("carts_created_total", "Total active carts created"),
		CartItemsAdd: f.counterVec("cart_items_added_total", "Total add to cart actions", "result"),
		CartUpdated:  f.counterVec("cart_updates_total", "Total cart line updates", "action"),
		CartCleared:  f.counter("carts_cleared_total", "Total cart clear actions"),
		CartValue:    f.histogram("cart_value", "Cart total after each mutation, in major currency units", []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 25000}),

		OrdersCreated:   f.counter("orders_created_total", "Total orders created from carts"),
		OrdersCancelled: f.counter("orders_cancelled_total", "Total orders cancelled by shoppers"),
		OrderValue:      f.histogram("order_value", "Order total at creation, in major currency units", []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 25000}),
		OrderItemCount:  f.histogram("order_item_count", "Number of units per order", []float64{1, 2, 3, 5, 10, 20, 50}),

		PaymentAttempts:    f.counterVec("payment_attempts_total", "Total payment initializations", "gateway", "result"),
		PaymentSucceeded:   f.counterVec("payments_succeeded_total", "Total payments moved to successful", "gateway", "source"),
		PaymentFailed:      f.counterVec("payments_failed_total", "Total payments moved to failed", "gateway", "reason"),
		PaymentDuplicates:  f.counterVec("payment_duplicate_signals_total", "Completion signals that found the payment already settled", "source"),
		PaymentsExpired:    f.counter("payments_expired_total", "Pending payments cancelled by the expiry sweep"),
		PaymentAfterCancel: f.counter("payments_after_cancel_total", "Successful payments for orders that were already cancelled"),
		SettledAfterClose:  f.counterVec("payments_settled_after_close_total", "Gateway-settled charges whose payment was already failed or cancelled", "status"),
		RevenueCollected:   f.counterVec("revenue_collected_total", "Total settled payment amount, in major currency units", "currency"),

		StockDecrements: f.counterVec("stock_decrements_total", "Units removed from stock on payment success", "game_id"),
		StockRejections: f.counterVec("stock_rejections_total", "Cart or order operations rejected for stock or availability", "stage"),

		WebhookReceived:  f.counterVec("webhooks_received_total", "Total webhooks received", "gateway", "event"),
		WebhookProcessed: f.counterVec("webhooks_processed_total", "Total webhooks processed", "gateway", "event", "outcome"),
		WebhookFailed:    f.counterVec("webhooks_failed_total", "Total webhook processing failures", "gateway", "reason"),
		WebhookLatency:   f.histogramVec("webhook_processing_duration_seconds", "Webhook processing duration", []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10}, "gateway"),

		JobsProcessed: f.counterVec("jobs_processed_total", "Total background jobs completed", "job_type"),
		JobsFailed:    f.counterVec("jobs_failed_total", "Total background jobs failed", "job_type"),
		JobDuration:   f.histogramVec("job_duration_seconds", "Background job execution duration", []float64{.1, .5, 1, 2.5, 5, 10, 30, 60}, "job_type"),

		GatewayAPILatency: f.histogramVec("gateway_api_duration_seconds", "Payment gateway call duration", []float64{.1, .25, .5, 1, 2.5, 5, 10, 30}, "gateway", "operation"),
	}
}

type metricFactory struct {
	auto      promauto.Factory
	namespace string
}

const businessSubsystem = "business"

func (f metricFactory) counter(name, help string) prometheus.Counter {
	return f.auto.NewCounter(prometheus.CounterOpts{Namespace: f.namespace, Subsystem: businessSubsystem, Name: name, Help: help})
}

func (f metricFactory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return f.auto.NewCounterVec(prometheus.CounterOpts{Namespace: f.namespace, Subsystem: businessSubsystem, Name: name, Help: help}, labels)
}

func (f metricFactory) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return f.auto.NewHistogram(prometheus.HistogramOpts{Namespace: f.namespace, Subsystem: businessSubsystem, Name: name, Help: help, Buckets: buckets})
}

func (f metricFactory) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.auto.NewHistogramVec(prometheus.HistogramOpts{Namespace: f.namespace, Subsystem: businessSubsystem, Name: name, Help: help, Buckets: buckets}, labels)
}

// Business is the process-wide instance. It stays nil when metrics are
// disabled, so callers check it before use.
var Business *BusinessMetrics

// InitBusinessMetrics sets Business using the default registry.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, nil)
	return Business
}
