// Package webhook receives payment provider callbacks.
package webhook

import (
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/rs/zerolog"
)

// MaxPayloadBytes bounds webhook bodies.
const MaxPayloadBytes = 65536

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider billing.Provider
	orders   service.OrderService
	metrics  *telemetry.BusinessMetrics
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(provider billing.Provider, orders service.OrderService, metrics *telemetry.BusinessMetrics) *StripeHandler {
	return &StripeHandler{
		provider: provider,
		orders:   orders,
		metrics:  metrics,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Only signature and payload problems are reported to Stripe (400). Once an
// event is verified the response is always 200 so Stripe does not retry
// failures that a retry cannot fix; those are logged, counted and sent to
// Sentry instead.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:5000/api/webhook
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		h.reject(w, r, "read", err)
		return
	}

	event, err := h.provider.ParseWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.reject(w, r, "verify", err)
		return
	}

	log := zerolog.Ctx(ctx).With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()
	ctx = log.WithContext(ctx)
	h.metrics.WebhookReceived.WithLabelValues(event.Type).Inc()

	if err := h.orders.HandlePaymentEvent(ctx, event); err != nil {
		h.metrics.WebhookFailures.WithLabelValues("process").Inc()
		log.Error().Err(err).Msg("failed to process webhook event")
		extras := map[string]any{"event_id": event.ID, "event_type": event.Type}
		if event.Session != nil {
			extras["session_id"] = event.Session.ID
		}
		telemetry.CaptureError(ctx, err, extras)
	}

	log.Info().Dur("duration", time.Since(start)).Msg("webhook handled")
	handler.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeHandler) reject(w http.ResponseWriter, r *http.Request, stage string, err error) {
	h.metrics.WebhookFailures.WithLabelValues(stage).Inc()
	zerolog.Ctx(r.Context()).Warn().Err(err).Str("stage", stage).Msg("webhook rejected")
	handler.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Webhook Error: " + err.Error()})
}
