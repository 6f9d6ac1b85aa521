package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession_UsesCatalogPrices(t *testing.T) {
	env := newTestEnv(t, false)
	bogus := decimal.RequireFromString("0.01")

	session, err := env.checkout.CreateSession(context.Background(), CheckoutRequest{
		Email: "buyer@example.com",
		Items: []CartItem{
			{ProductID: 1, Quantity: 2, Price: &bogus},
			{Name: "Premium Kibble (10kg)", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, session.URL, session.ID)

	params := env.provider.Sessions[session.ID]
	assert.Equal(t, "zar", params.Currency)
	assert.Equal(t, "http://shop.test/success.html?session_id={CHECKOUT_SESSION_ID}", params.SuccessURL)
	assert.Equal(t, "http://shop.test/checkout.html", params.CancelURL)
	assert.Equal(t, "buyer@example.com", params.CustomerEmail)

	require.Len(t, params.Items, 2)
	assert.Equal(t, billing.CheckoutLineItem{
		ProductID:  1,
		Name:       "Rope Toy",
		Image:      "/img/rope.jpg",
		UnitAmount: 8999,
		Quantity:   2,
	}, params.Items[0])
	assert.Equal(t, 2, params.Items[1].ProductID)
	assert.Equal(t, "10kg", params.Items[1].Size)
	assert.Equal(t, "Premium Kibble (10kg)", params.Items[1].Name)
	assert.Equal(t, int64(74900), params.Items[1].UnitAmount)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CheckoutSessions.WithLabelValues("created")))
	assert.Equal(t, 5, env.stock(t, 1, ""), "checkout must not reserve stock")
}

func TestCreateSession_InsufficientStockSkipsProvider(t *testing.T) {
	tests := []struct {
		name      string
		items     []CartItem
		product   string
		available int
	}{
		{
			name:      "plain product",
			items:     []CartItem{{ProductID: 1, Quantity: 6}},
			product:   "Rope Toy",
			available: 5,
		},
		{
			name:      "variant",
			items:     []CartItem{{ProductID: 2, Size: "10kg", Quantity: 2}},
			product:   "Premium Kibble (10kg)",
			available: 1,
		},
		{
			name: "split across lines",
			items: []CartItem{
				{ProductID: 2, Size: "2kg", Quantity: 2},
				{Name: "Premium Kibble (2kg)", Quantity: 2},
			},
			product:   "Premium Kibble (2kg)",
			available: 3,
		},
		{
			name:      "out of stock",
			items:     []CartItem{{ProductID: 1, Quantity: 1}, {ProductID: 3, Quantity: 1}},
			product:   "Dog Bed",
			available: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			_, err := env.checkout.CreateSession(context.Background(), CheckoutRequest{Items: tt.items})
			require.Error(t, err)

			var se *domain.StockError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.product, se.Product)
			assert.Equal(t, tt.available, se.Available)
			assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))

			assert.Zero(t, env.provider.CallCount("CreateCheckoutSession"))
			assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CheckoutSessions.WithLabelValues("insufficient_stock")))
		})
	}
}

func TestCreateSession_HugeQuantityRejected(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items: []CartItem{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: math.MaxInt}},
	})
	require.Error(t, err)
	assert.Contains(t, []string{domain.EINVALID, domain.ESTOCK}, domain.ErrorCode(err))
	assert.Zero(t, env.provider.CallCount("CreateCheckoutSession"))
}

func TestResolveCart_SumCannotWrap(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := resolveCart(context.Background(), "test", env.catalog, []CartItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 1, Quantity: math.MaxInt},
	})
	require.Error(t, err)

	var se *domain.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Rope Toy", se.Product)
	assert.Equal(t, 5, se.Available)
	assert.Equal(t, math.MaxInt, se.Requested)
}

func TestCreateSession_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CheckoutRequest
		message string
	}{
		{"empty cart", CheckoutRequest{}, MsgRequiredFields},
		{"zero quantity", CheckoutRequest{Items: []CartItem{{ProductID: 1}}}, MsgRequiredFields},
		{"quantity over cap", CheckoutRequest{Items: []CartItem{{ProductID: 1, Quantity: 10001}}}, "quantity must be at most 10000"},
		{"bad email", CheckoutRequest{Email: "nope", Items: []CartItem{{ProductID: 1, Quantity: 1}}}, MsgInvalidEmail},
		{"unknown product", CheckoutRequest{Items: []CartItem{{Name: "Cat Tree", Quantity: 1}}}, "Product not found: Cat Tree"},
		{"unknown size", CheckoutRequest{Items: []CartItem{{ProductID: 2, Size: "50kg", Quantity: 1}}}, "Product not found: #2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			_, err := env.checkout.CreateSession(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			assert.Equal(t, tt.message, domain.ErrorMessage(err))
			assert.Zero(t, env.provider.CallCount("CreateCheckoutSession"))
		})
	}
}

func TestCreateSession_ProviderFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.provider.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CheckoutSessionParams) (*billing.CheckoutSession, error) {
		return nil, &billing.StripeError{Message: "api down", HTTPStatus: 503}
	}

	_, err := env.checkout.CreateSession(context.Background(), CheckoutRequest{Items: []CartItem{{ProductID: 1, Quantity: 1}}})
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CheckoutSessions.WithLabelValues("error")))
}
