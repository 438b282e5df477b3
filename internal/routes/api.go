package routes

import (
	"github.com/dukerupert/gamersmart/internal/middleware"
	"github.com/dukerupert/gamersmart/internal/router"
)

// RegisterAPIRoutes registers the cart, order and payment routes.
// The router must already run middleware.Authenticate so the guards below
// can see the user.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Cart: any signed-in user
	cart := r.Group(middleware.RequireAuth)
	cart.Get("/cart", deps.CartHandler.View)
	cart.Post("/cart/add", deps.CartHandler.Add)
	cart.Put("/cart/update/{itemId}", deps.CartHandler.Update)
	cart.Delete("/cart/remove/{itemId}", deps.CartHandler.Remove)
	cart.Delete("/cart/clear", deps.CartHandler.Clear)

	// Orders: verified users only
	verified := r.Group(middleware.RequireAuth, middleware.RequireVerified)

	var throttled []router.Middleware
	if deps.CheckoutLimiter != nil {
		throttled = append(throttled, deps.CheckoutLimiter.Middleware)
	}

	verified.Post("/order", deps.OrderHandler.Create, throttled...)
	verified.Get("/order", deps.OrderHandler.List)
	verified.Get("/order/{id}", deps.OrderHandler.Get)
	verified.Put("/order/{id}", deps.OrderHandler.Cancel)

	// Payments
	verified.Post("/payment/initialize", deps.PaymentHandler.Initialize, throttled...)
	verified.Get("/payment/callback", deps.PaymentHandler.Callback)
	cart.Get("/payment/history", deps.PaymentHandler.History)
}
