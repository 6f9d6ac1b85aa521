package routes

import (
	"github.com/dukerupert/goodboy/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Note: Webhook routes do NOT have authentication middleware.
// Each webhook handler is responsible for verifying the request
// signature (e.g., Stripe signature verification).
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	if deps.StripeHandler == nil {
		return
	}
	r.Post("/api/webhook", deps.StripeHandler.HandleWebhook)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
}
