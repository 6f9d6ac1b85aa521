package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/goodboy/internal/auth"
	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/filestore"
	"github.com/dukerupert/goodboy/internal/handler/api"
	"github.com/dukerupert/goodboy/internal/handler/webhook"
	"github.com/dukerupert/goodboy/internal/router"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler http.Handler
	store   *filestore.Store
	users   service.UserService
}

func newTestServer(t *testing.T, direct bool) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.UpsertProduct(ctx, &domain.Product{
		ID: 1, Name: "Rope Toy", Price: decimal.RequireFromString("89.99"), Stock: 5,
	}))
	require.NoError(t, store.UpsertProduct(ctx, &domain.Product{
		ID: 2, Name: "Premium Kibble", Price: decimal.RequireFromString("199.99"),
		Variants: []domain.Variant{
			{Size: "2kg", Price: decimal.RequireFromString("199.99"), Stock: 3},
		},
	}))

	metrics := telemetry.NewTestMetrics()
	provider := billing.NewMockProvider("whsec_test")
	catalog := service.NewCatalogService(store, nil, metrics)
	orders := service.NewOrderService(store, catalog, store, provider, nil, metrics, service.OrderServiceConfig{
		DirectOrdering: direct,
	})
	users := service.NewUserService(store, auth.NewHasher(bcrypt.MinCost), auth.NewTokenIssuer("test-secret", time.Hour), metrics)

	r := router.New()
	var webhookDeps WebhookDeps
	if !direct {
		webhookDeps.StripeHandler = webhook.NewStripeHandler(provider, orders, metrics)
	}
	RegisterWebhookRoutes(r, webhookDeps)
	RegisterAPIRoutes(r, APIDeps{
		ProductHandler: api.NewProductHandler(catalog),
		CheckoutHandler: api.NewCheckoutHandler(service.NewCheckoutService(catalog, provider, metrics, service.CheckoutConfig{
			BaseURL: "http://shop.test",
		})),
		OrderHandler:   api.NewOrderHandler(orders, service.NewTrackerService(store)),
		AuthHandler:    api.NewAuthHandler(users),
		Auth:           users,
		DirectOrdering: direct,
	})
	RegisterOpsRoutes(r, OpsDeps{
		Health: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
	})

	return &testServer{handler: r, store: store, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"firstName": "Sam",
		"lastName":  "Jones",
		"email":     email,
		"password":  "woofwoof",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res service.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	_, err := s.users.EnsureAdmin(context.Background(), service.RegisterRequest{
		FirstName: "Store", LastName: "Admin", Email: "admin@goodboy.test", Password: "admin-password",
	})
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "admin@goodboy.test", "password": "admin-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res service.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Token
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func placeOrder(t *testing.T, s *testServer, email string) domain.Order {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/orders", "", map[string]any{
		"items":    []map[string]any{{"productId": 1, "quantity": 2}},
		"customer": map[string]string{"name": "Sam Jones", "email": email},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	return order
}

func TestProducts(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 2)

	rec = s.do(t, http.MethodGet, "/api/products/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownAPIRoute(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/api/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ENOTFOUND, errorCode(t, rec))
}

func TestOrderMode(t *testing.T) {
	t.Run("webhook mode has no direct ordering", func(t *testing.T) {
		s := newTestServer(t, false)

		rec := s.do(t, http.MethodPost, "/api/orders", "", map[string]any{})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = s.do(t, http.MethodPost, "/api/webhook", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "unsigned payloads are rejected")
	})

	t.Run("direct mode has no webhook", func(t *testing.T) {
		s := newTestServer(t, true)

		order := placeOrder(t, s, "sam@example.com")
		assert.Equal(t, domain.FulfillmentPlaced, order.Status)

		rec := s.do(t, http.MethodPost, "/api/webhook", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDirectOrder_InsufficientStock(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/orders", "", map[string]any{
		"items":    []map[string]any{{"productId": 2, "size": "2kg", "quantity": 4}},
		"customer": map[string]string{"name": "Sam Jones", "email": "sam@example.com"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only 3 left")
}

func TestCheckoutSession(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/create-checkout-session", "", map[string]any{
		"items": []map[string]any{{"productId": 1, "quantity": 1}},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["url"])
}

func TestOrderLookupAndTracking(t *testing.T) {
	s := newTestServer(t, true)
	order := placeOrder(t, s, "sam@example.com")

	rec := s.do(t, http.MethodGet, "/api/orders/"+order.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/"+order.ID+"/tracking", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tracking service.Tracking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracking))
	assert.Equal(t, order.ID, tracking.OrderID)
	assert.False(t, tracking.ShowTracking)

	rec = s.do(t, http.MethodGet, "/api/orders/ORD-MISSING", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHistory(t *testing.T) {
	s := newTestServer(t, true)
	placeOrder(t, s, "sam@example.com")
	placeOrder(t, s, "other@example.com")

	rec := s.do(t, http.MethodGet, "/api/orders/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := s.register(t, "Sam@Example.com")
	rec = s.do(t, http.MethodGet, "/api/orders/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "sam@example.com", orders[0].Customer.Email)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, true)
	order := placeOrder(t, s, "sam@example.com")
	customer := s.register(t, "sam@example.com")
	admin := s.adminToken(t)
	statusPath := "/api/admin/orders/" + order.ID + "/status"

	rec := s.do(t, http.MethodGet, "/api/admin/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/orders", customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/orders", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, statusPath, admin, map[string]string{"status": "Shipped"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, statusPath, admin, map[string]string{"status": "Processing"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, statusPath, admin, map[string]string{"status": "Lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/products/1", customer, map[string]int{"stock": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/products/1", admin, map[string]int{"stock": 42})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p, err := s.store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 42, p.Stock)
}

func TestGetUser(t *testing.T) {
	s := newTestServer(t, false)
	token := s.register(t, "sam@example.com")
	other := s.register(t, "other@example.com")

	u, err := s.store.GetUserByEmail(context.Background(), "sam@example.com")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/auth/user/"+u.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodGet, "/api/auth/user/"+u.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t, false)
	s.register(t, "sam@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "sam@example.com", "password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
