package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/filestore"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
	stripewebhook "github.com/stripe/stripe-go/v83/webhook"
)

const testSecret = "whsec_test_secret"

type fixture struct {
	store    *filestore.Store
	provider *billing.MockProvider
	metrics  *telemetry.BusinessMetrics
	handler  *StripeHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.UpsertProduct(context.Background(), &domain.Product{
		ID:    1,
		Name:  "Rope Toy",
		Price: decimal.RequireFromString("89.99"),
		Stock: 5,
	}))

	f := &fixture{
		store:    store,
		provider: billing.NewMockProvider(testSecret),
		metrics:  telemetry.NewTestMetrics(),
	}
	catalog := service.NewCatalogService(store, nil, f.metrics)
	orders := service.NewOrderService(store, catalog, store, f.provider, nil, f.metrics, service.OrderServiceConfig{})
	f.handler = NewStripeHandler(f.provider, orders, f.metrics)

	f.provider.LineItems["cs_test_1"] = []billing.PurchasedItem{
		{ProductID: 1, Name: "Rope Toy", Quantity: 2, AmountTotal: 17998},
	}
	return f
}

func eventPayload(t *testing.T, eventID, eventType string) []byte {
	t.Helper()
	session, err := json.Marshal(map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"currency":       "zar",
		"amount_total":   17998,
		"customer_details": map[string]any{
			"email": "buyer@example.com",
			"name":  "Buyer Person",
		},
	})
	require.NoError(t, err)

	event, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(session)},
	})
	require.NoError(t, err)
	return event
}

func (f *fixture) post(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	f.handler.HandleWebhook(rec, req)
	return rec
}

func sign(payload []byte, secret string) string {
	return stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func TestHandleWebhook_CreatesOrder(t *testing.T) {
	f := newFixture(t)
	payload := eventPayload(t, "evt_1", "checkout.session.completed")

	rec := f.post(t, payload, sign(payload, testSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	order, err := f.store.GetOrderByPaymentSession(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "buyer@example.com", order.Customer.Email)

	p, err := f.store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookReceived.WithLabelValues("checkout.session.completed")))
}

func TestHandleWebhook_RedeliveryCreatesOneOrder(t *testing.T) {
	f := newFixture(t)
	payload := eventPayload(t, "evt_1", "checkout.session.completed")

	for i := 0; i < 2; i++ {
		rec := f.post(t, payload, sign(payload, testSecret))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	orders, err := f.store.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	p, err := f.store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature func([]byte) string
	}{
		{"missing header", func([]byte) string { return "" }},
		{"wrong secret", func(p []byte) string { return sign(p, "whsec_other") }},
		{"garbage header", func([]byte) string { return "t=1,v1=deadbeef" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			payload := eventPayload(t, "evt_1", "checkout.session.completed")

			rec := f.post(t, payload, tt.signature(payload))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], "Webhook Error: ")

			orders, err := f.store.ListOrders(context.Background())
			require.NoError(t, err)
			assert.Empty(t, orders)
			assert.Zero(t, f.provider.CallCount("ListLineItems"))
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookFailures.WithLabelValues("verify")))
		})
	}
}

func TestHandleWebhook_ProcessingFailureStillAcknowledged(t *testing.T) {
	f := newFixture(t)
	delete(f.provider.LineItems, "cs_test_1")
	payload := eventPayload(t, "evt_1", "checkout.session.completed")

	rec := f.post(t, payload, sign(payload, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookFailures.WithLabelValues("process")))
}

func TestHandleWebhook_OtherEventsAcknowledged(t *testing.T) {
	f := newFixture(t)
	payload := eventPayload(t, "evt_1", "customer.created")

	rec := f.post(t, payload, sign(payload, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.provider.CallCount("ListLineItems"))
}
