package routes

import (
	"net/http"

	"github.com/dukerupert/gamersmart/internal/handler/api"
	"github.com/dukerupert/gamersmart/internal/middleware"
)

// APIDeps contains dependencies for the shopper API routes
type APIDeps struct {
	CartHandler    *api.CartHandler
	OrderHandler   *api.OrderHandler
	PaymentHandler *api.PaymentHandler

	// CheckoutLimiter throttles order creation and payment initialization
	// per user. Optional.
	CheckoutLimiter *middleware.RateLimiter
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	GatewayHandler http.HandlerFunc
}

// SystemDeps contains dependencies for unauthenticated operational routes
type SystemDeps struct {
	Health http.HandlerFunc

	// Metrics is nil when metrics are disabled.
	Metrics http.Handler
}
