package routes

import (
	"github.com/dukerupert/gamersmart/internal/middleware"
	"github.com/dukerupert/gamersmart/internal/router"
)

// RegisterWebhookRoutes mounts the gateway webhook. It has no session
// authentication; the payment service checks the gateway signature instead.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/payment/webhook", deps.GatewayHandler, middleware.MaxBodySize(middleware.WebhookMaxBodySize))
}

// RegisterSystemRoutes mounts health and metrics plus the JSON 404 and 405
// fallbacks. Call it last.
func RegisterSystemRoutes(r *router.Router, deps SystemDeps) {
	r.Get("/healthz", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
	r.NotFound(middleware.NotFound())
	r.MethodNotAllowed(middleware.MethodNotAllowed())
}
