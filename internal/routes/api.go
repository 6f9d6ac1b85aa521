package routes

import (
	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/middleware"
	"github.com/dukerupert/goodboy/internal/router"
)

// RegisterAPIRoutes registers the storefront and admin JSON API.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	authed := r.Group(middleware.RequireAuth(deps.Auth))
	admin := authed.Group(middleware.RequireAdmin)

	auth := r
	if deps.AuthLimiter != nil {
		auth = r.Group(deps.AuthLimiter)
	}

	// Catalog
	r.Get("/api/products", deps.ProductHandler.List)
	r.Get("/api/products/{id}", deps.ProductHandler.Get)
	admin.Put("/api/products/{id}", deps.ProductHandler.Update)

	// Checkout
	r.Post("/api/create-checkout-session", deps.CheckoutHandler.CreateSession)

	// Orders
	if deps.DirectOrdering {
		r.Post("/api/orders", deps.OrderHandler.Create)
	}
	authed.Get("/api/orders/history", deps.OrderHandler.History)
	r.Get("/api/orders/{id}", deps.OrderHandler.Get)
	r.Get("/api/orders/{id}/tracking", deps.OrderHandler.Tracking)
	admin.Get("/api/admin/orders", deps.OrderHandler.ListAll)
	admin.Put("/api/admin/orders/{id}/status", deps.OrderHandler.UpdateStatus)

	// Accounts
	auth.Post("/api/auth/register", deps.AuthHandler.Register)
	auth.Post("/api/auth/login", deps.AuthHandler.Login)
	authed.Get("/api/auth/user/{id}", deps.AuthHandler.GetUser)

	r.NotFound("/api", handler.NotFoundResponse)
}
