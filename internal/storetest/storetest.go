// Package storetest holds the behavioral contract every store backend must
// satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stores bundles one backend's implementations.
type Stores struct {
	Products domain.ProductStore
	Users    domain.UserStore
	Orders   domain.OrderStore
	Events   domain.EventLedger
}

// Factory returns empty stores for a single subtest.
type Factory func(t *testing.T) Stores

// Run executes the contract suite.
func Run(t *testing.T, newStores Factory) {
	t.Run("Products", func(t *testing.T) { testProducts(t, newStores) })
	t.Run("StockDecrement", func(t *testing.T) { testStockDecrement(t, newStores) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStores) })
	t.Run("Orders", func(t *testing.T) { testOrders(t, newStores) })
	t.Run("EventLedger", func(t *testing.T) { testEvents(t, newStores) })
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// SampleProducts is a small catalog used across tests.
func SampleProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Treat", Category: "Food", Price: dec("10.00"), Stock: 5},
		{ID: 2, Name: "Chew Toy", Category: "Toys", Price: dec("49.99"), Stock: 1},
		{
			ID: 3, Name: "Premium Kibble", Category: "Food", Price: dec("199.99"), Stock: 0,
			Variants: []domain.Variant{
				{Size: "2kg", Price: dec("199.99"), Stock: 3},
				{Size: "10kg", Price: dec("799.00"), Stock: 1},
			},
		},
	}
}

// Seed upserts SampleProducts.
func Seed(t *testing.T, ps domain.ProductStore) {
	t.Helper()
	for _, p := range SampleProducts() {
		p := p
		require.NoError(t, ps.UpsertProduct(context.Background(), &p))
	}
}

func testProducts(t *testing.T, newStores Factory) {
	ctx := context.Background()
	s := newStores(t)
	Seed(t, s.Products)

	list, err := s.Products.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].ID, list[1].ID, list[2].ID})
	assert.True(t, list[0].Price.Equal(dec("10.00")))
	require.Len(t, list[2].Variants, 2)
	assert.Equal(t, "2kg", list[2].Variants[0].Size)

	p, err := s.Products.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Chew Toy", p.Name)

	_, err = s.Products.GetProduct(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	byName, err := s.Products.FindProductByName(ctx, "premium kibble")
	require.NoError(t, err)
	assert.Equal(t, 3, byName.ID)

	_, err = s.Products.FindProductByName(ctx, "Nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	price := dec("11.50")
	stock := 20
	updated, err := s.Products.UpdateProduct(ctx, 1, domain.ProductUpdate{Price: &price, Stock: &stock})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, 20, updated.Stock)

	updated, err = s.Products.UpdateProduct(ctx, 3, domain.ProductUpdate{
		Variants: []domain.Variant{{Size: "5kg", Price: dec("450.00"), Stock: 7}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Variants, 1)
	assert.Equal(t, "5kg", updated.Variants[0].Size)

	reread, err := s.Products.GetProduct(ctx, 3)
	require.NoError(t, err)
	require.Len(t, reread.Variants, 1)
	assert.Equal(t, 7, reread.Variants[0].Stock)

	_, err = s.Products.UpdateProduct(ctx, 42, domain.ProductUpdate{Stock: &stock})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	negative := -3
	_, err = s.Products.UpdateProduct(ctx, 1, domain.ProductUpdate{Stock: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidStock)

	// Upsert replaces.
	replacement := domain.Product{ID: 2, Name: "Squeaky Toy", Price: dec("5.00"), Stock: 9}
	require.NoError(t, s.Products.UpsertProduct(ctx, &replacement))
	p, err = s.Products.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Squeaky Toy", p.Name)
	assert.Equal(t, 9, p.Stock)
}

func testStockDecrement(t *testing.T, newStores Factory) {
	ctx := context.Background()
	s := newStores(t)
	Seed(t, s.Products)

	t.Run("decrements within stock", func(t *testing.T) {
		adj, err := s.Products.DecrementStock(ctx, 1, "", 2)
		require.NoError(t, err)
		assert.Equal(t, 5, adj.Before)
		assert.Equal(t, 3, adj.After)
		assert.False(t, adj.Oversold())
	})

	t.Run("clamps at zero", func(t *testing.T) {
		adj, err := s.Products.DecrementStock(ctx, 2, "", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, adj.Before)
		assert.Equal(t, 0, adj.After)
		assert.Equal(t, 1, adj.Shortfall)

		p, err := s.Products.GetProduct(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)
	})

	t.Run("decrements a variant only", func(t *testing.T) {
		adj, err := s.Products.DecrementStock(ctx, 3, "10kg", 3)
		require.NoError(t, err)
		assert.Equal(t, 1, adj.Before)
		assert.Equal(t, 0, adj.After)
		assert.Equal(t, 2, adj.Shortfall)

		p, err := s.Products.GetProduct(ctx, 3)
		require.NoError(t, err)
		v, ok := p.Variant("10kg")
		require.True(t, ok)
		assert.Equal(t, 0, v.Stock)
		other, _ := p.Variant("2kg")
		assert.Equal(t, 3, other.Stock)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := s.Products.DecrementStock(ctx, 77, "", 1)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("unknown variant", func(t *testing.T) {
		_, err := s.Products.DecrementStock(ctx, 3, "50kg", 1)
		assert.ErrorIs(t, err, domain.ErrVariantNotFound)
	})

	t.Run("concurrent decrements never go negative", func(t *testing.T) {
		fresh := domain.Product{ID: 10, Name: "Ball", Price: dec("3.00"), Stock: 5}
		require.NoError(t, s.Products.UpsertProduct(ctx, &fresh))

		var wg sync.WaitGroup
		var mu sync.Mutex
		taken := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				adj, err := s.Products.DecrementStock(ctx, 10, "", 1)
				if assert.NoError(t, err) {
					mu.Lock()
					taken += 1 - adj.Shortfall
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		p, err := s.Products.GetProduct(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)
		assert.Equal(t, 5, taken)
	})
}

func testUsers(t *testing.T, newStores Factory) {
	ctx := context.Background()
	s := newStores(t)

	u := &domain.User{
		ID:           "u-1",
		FirstName:    "Rex",
		LastName:     "Barker",
		Email:        "rex@example.com",
		PasswordHash: "$2a$04$hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.Users.CreateUser(ctx, u))

	dup := *u
	dup.ID = "u-2"
	dup.Email = "REX@Example.com"
	assert.ErrorIs(t, s.Users.CreateUser(ctx, &dup), domain.ErrEmailTaken)

	got, err := s.Users.GetUserByEmail(ctx, " Rex@EXAMPLE.com ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, "$2a$04$hash", got.PasswordHash)
	assert.False(t, got.IsAdmin)

	_, err = s.Users.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = s.Users.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, s.Users.SetAdmin(ctx, "u-1", true, "$2a$04$newhash"))
	got, err = s.Users.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "$2a$04$newhash", got.PasswordHash)

	require.NoError(t, s.Users.SetAdmin(ctx, "u-1", false, ""))
	got, err = s.Users.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)
	assert.Equal(t, "$2a$04$newhash", got.PasswordHash)

	assert.ErrorIs(t, s.Users.SetAdmin(ctx, "missing", true, ""), domain.ErrUserNotFound)
}

func newTestOrder(email, session string, created time.Time) *domain.Order {
	o := domain.NewOrder(
		[]domain.LineItem{{ProductID: 1, Name: "Treat", Quantity: 2, Price: dec("10.00")}},
		domain.Customer{Name: "Sam", Email: email, City: "Durban"},
		domain.PaymentStatusPaid,
		created,
	)
	o.PaymentSessionID = session
	return o
}

func testOrders(t *testing.T, newStores Factory) {
	ctx := context.Background()
	s := newStores(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	first := newTestOrder("sam@example.com", "cs_1", base)
	second := newTestOrder("sam@example.com", "", base.Add(48*time.Hour))
	other := newTestOrder("kim@example.com", "cs_2", base.Add(time.Hour))

	for _, o := range []*domain.Order{first, second, other} {
		require.NoError(t, s.Orders.CreateOrder(ctx, o))
	}

	got, err := s.Orders.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.Total.Equal(dec("20.00")))
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, domain.FulfillmentPlaced, got.Status)
	assert.Equal(t, "Durban", got.Customer.City)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(dec("10.00")))
	assert.True(t, got.CreatedAt.Equal(base))

	_, err = s.Orders.GetOrder(ctx, "ORD-MISSING")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	bySession, err := s.Orders.GetOrderByPaymentSession(ctx, "cs_2")
	require.NoError(t, err)
	assert.Equal(t, other.ID, bySession.ID)

	_, err = s.Orders.GetOrderByPaymentSession(ctx, "cs_none")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	dup := newTestOrder("sam@example.com", "cs_1", base)
	assert.ErrorIs(t, s.Orders.CreateOrder(ctx, dup), domain.ErrDuplicatePaymentSession)

	// Two orders without a session must not collide.
	noSession := newTestOrder("lee@example.com", "", base)
	require.NoError(t, s.Orders.CreateOrder(ctx, noSession))

	history, err := s.Orders.ListOrdersByEmail(ctx, "SAM@example.com")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	all, err := s.Orders.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, second.ID, all[0].ID)

	later := base.Add(72 * time.Hour)
	updated, err := s.Orders.UpdateOrderStatus(ctx, first.ID, domain.FulfillmentShipped, later)
	require.NoError(t, err)
	assert.Equal(t, domain.FulfillmentShipped, updated.Status)
	assert.True(t, updated.UpdatedAt.Equal(later))

	_, err = s.Orders.UpdateOrderStatus(ctx, "ORD-MISSING", domain.FulfillmentShipped, later)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func testEvents(t *testing.T, newStores Factory) {
	ctx := context.Background()
	s := newStores(t)
	e := domain.PaymentEvent{
		EventID:    "evt_1",
		Type:       "checkout.session.completed",
		SessionID:  "cs_1",
		ReceivedAt: time.Now().UTC(),
	}

	fresh, err := s.Events.RecordEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = s.Events.RecordEvent(ctx, e)
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, s.Events.ForgetEvent(ctx, "evt_1"))
	fresh, err = s.Events.RecordEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, fresh)

	require.NoError(t, s.Events.ForgetEvent(ctx, "evt_unknown"))
}
