// Package routes binds handlers to URL patterns.
package routes

import (
	"net/http"

	"github.com/dukerupert/goodboy/internal/handler/api"
	"github.com/dukerupert/goodboy/internal/handler/webhook"
	"github.com/dukerupert/goodboy/internal/middleware"
	"github.com/dukerupert/goodboy/internal/router"
)

// APIDeps contains dependencies for the JSON API routes
type APIDeps struct {
	ProductHandler  *api.ProductHandler
	CheckoutHandler *api.CheckoutHandler
	OrderHandler    *api.OrderHandler
	AuthHandler     *api.AuthHandler

	// Auth resolves session tokens for protected routes.
	Auth middleware.Authenticator

	// AuthLimiter is applied to login and registration. Optional.
	AuthLimiter router.Middleware

	// DirectOrdering registers POST /api/orders.
	DirectOrdering bool
}

// WebhookDeps contains dependencies for webhook routes. A nil
// StripeHandler registers nothing.
type WebhookDeps struct {
	StripeHandler *webhook.StripeHandler
}

// OpsDeps contains the health and metrics endpoints.
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler
}
