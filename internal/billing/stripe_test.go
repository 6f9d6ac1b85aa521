package billing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func signedPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func checkoutCompletedPayload(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"id":             "cs_test_123",
		"object":         "checkout.session",
		"payment_status": "paid",
		"currency":       "zar",
		"amount_total":   2000,
		"customer_details": map[string]any{
			"email": "buyer@example.com",
			"name":  "Buyer Person",
			"address": map[string]any{
				"line1":       "1 Bark Street",
				"city":        "Cape Town",
				"postal_code": "8001",
				"country":     "ZA",
			},
		},
		"metadata": map[string]string{"source": "web"},
	})
	require.NoError(t, err)

	event, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(data)},
	})
	require.NoError(t, err)
	return event
}

func TestWebhookVerifier_ParseEvent(t *testing.T) {
	v := WebhookVerifier{Secret: testSecret}
	payload := checkoutCompletedPayload(t)

	t.Run("decodes checkout session", func(t *testing.T) {
		event, err := v.ParseEvent(payload, signedPayload(t, payload, testSecret))
		require.NoError(t, err)

		assert.Equal(t, "evt_test_1", event.ID)
		assert.Equal(t, EventCheckoutSessionCompleted, event.Type)
		require.NotNil(t, event.Session)
		assert.Equal(t, "cs_test_123", event.Session.ID)
		assert.Equal(t, "buyer@example.com", event.Session.CustomerEmail)
		assert.Equal(t, "Buyer Person", event.Session.CustomerName)
		assert.Equal(t, "Cape Town", event.Session.Address.City)
		assert.Equal(t, int64(2000), event.Session.AmountTotal)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		_, err := v.ParseEvent(payload, signedPayload(t, payload, "whsec_other"))
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("rejects missing header", func(t *testing.T) {
		_, err := v.ParseEvent(payload, "")
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		header := signedPayload(t, payload, testSecret)
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-2] = ' '
		_, err := v.ParseEvent(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("other events carry no session", func(t *testing.T) {
		other := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","api_version":"` + stripe.APIVersion + `","data":{"object":{}}}`)
		event, err := v.ParseEvent(other, signedPayload(t, other, testSecret))
		require.NoError(t, err)
		assert.Equal(t, "charge.refunded", event.Type)
		assert.Nil(t, event.Session)
	})
}

func TestPurchasedItemFromStripe(t *testing.T) {
	li := &stripe.LineItem{
		Description: "Treat",
		Quantity:    2,
		AmountTotal: 2000,
		Price: &stripe.Price{
			Product: &stripe.Product{
				Name:     "Treat",
				Images:   []string{"/img/treat.png"},
				Metadata: map[string]string{MetadataProductID: "7", MetadataSize: "Large"},
			},
		},
	}

	item := purchasedItemFromStripe(li)
	assert.Equal(t, PurchasedItem{
		ProductID:   7,
		Size:        "Large",
		Name:        "Treat",
		Image:       "/img/treat.png",
		Quantity:    2,
		AmountTotal: 2000,
	}, item)

	bare := purchasedItemFromStripe(&stripe.LineItem{Description: "Mystery", Quantity: 1, AmountTotal: 500})
	assert.Zero(t, bare.ProductID)
	assert.Equal(t, "Mystery", bare.Name)
}

func TestWrapStripeError(t *testing.T) {
	assert.Nil(t, wrapStripeError(nil))

	err := wrapStripeError(&stripe.Error{Msg: "No such session", Code: "resource_missing", HTTPStatusCode: 404})
	var se *StripeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "resource_missing", se.Code)
	assert.False(t, se.IsTemporary())

	err = wrapStripeError(&stripe.Error{Msg: "boom", HTTPStatusCode: 502})
	require.True(t, errors.As(err, &se))
	assert.True(t, se.IsTemporary())
}

func TestStripeConfig(t *testing.T) {
	cfg := StripeConfig{APIKey: "sk_test_abc", WebhookSecret: testSecret}
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsTestMode())

	assert.ErrorIs(t, (&StripeConfig{}).Validate(), ErrInvalidAPIKey)
	assert.Error(t, (&StripeConfig{APIKey: "sk_live_x"}).Validate())
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider(testSecret)

	_, err := m.CreateCheckoutSession(t.Context(), CheckoutSessionParams{})
	assert.ErrorIs(t, err, ErrEmptyCheckout)

	sess, err := m.CreateCheckoutSession(t.Context(), CheckoutSessionParams{
		Items: []CheckoutLineItem{{ProductID: 1, Name: "Treat", UnitAmount: 1000, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Contains(t, sess.URL, sess.ID)
	assert.Equal(t, 2, m.CallCount("CreateCheckoutSession"))

	_, err = m.ListLineItems(t.Context(), "cs_missing")
	assert.Error(t, err)
}
