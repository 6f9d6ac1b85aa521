package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukerupert/goodboy/internal/auth"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/filestore"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const productsJSON = `[
  {"id": 1, "name": "Rope Toy", "price": 89.99, "stock": 3},
  {"id": 2, "name": "Premium Kibble", "price": 199.99, "variants": [
    {"size": "2kg", "price": 199.99, "stock": 1},
    {"size": "10kg", "price": 749.00, "stock": 0}
  ]}
]`

func newTestCLI(t *testing.T) (*cli, *filestore.Store, *bytes.Buffer) {
	t.Helper()

	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)

	metrics := telemetry.NewTestMetrics()
	out := &bytes.Buffer{}
	return &cli{
		products: store,
		catalog:  service.NewCatalogService(store, nil, metrics),
		users: service.NewUserService(store,
			auth.NewHasher(bcrypt.MinCost),
			auth.NewTokenIssuer("test-secret", 0),
			metrics,
		),
		out: out,
	}, store, out
}

func writeProducts(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(productsJSON), 0o644))
	return path
}

func TestSeed_OverridesStock(t *testing.T) {
	c, store, out := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, c.dispatch(ctx, "seed", []string{"-file", writeProducts(t), "-stock", "100"}))

	products, err := store.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 100, products[0].Stock)
	assert.Equal(t, 100, products[1].Variants[0].Stock)
	assert.Equal(t, 100, products[1].Variants[1].Stock)
	assert.Contains(t, out.String(), "Imported 2 products.")
}

func TestSeed_KeepsFileStock(t *testing.T) {
	c, store, _ := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, c.dispatch(ctx, "seed", []string{"-file", writeProducts(t), "-stock", "-1"}))

	p, err := store.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Variants[0].Stock)
	assert.Equal(t, 0, p.Variants[1].Stock)
}

func TestSetStock(t *testing.T) {
	c, store, out := newTestCLI(t)
	ctx := context.Background()
	require.NoError(t, c.seed(ctx, writeProducts(t), -1))

	require.NoError(t, c.dispatch(ctx, "set-stock", []string{"-id", "1", "-stock", "0"}))
	require.NoError(t, c.dispatch(ctx, "set-stock", []string{"-id", "2", "-size", "10KG", "-stock", "7"}))

	p1, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p1.Stock)

	p2, err := store.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, p2.Variants[0].Stock)
	assert.Equal(t, 7, p2.Variants[1].Stock)
	assert.Contains(t, out.String(), "Set stock to 0 for: Rope Toy")

	err = c.dispatch(ctx, "set-stock", []string{"-id", "2", "-size", "50kg", "-stock", "1"})
	assert.ErrorIs(t, err, domain.ErrVariantNotFound)
}

func TestVariantStock(t *testing.T) {
	c, store, out := newTestCLI(t)
	ctx := context.Background()
	require.NoError(t, c.seed(ctx, writeProducts(t), -1))

	require.NoError(t, c.dispatch(ctx, "variant-stock", []string{"-stock", "25"}))

	p1, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p1.Stock, "products without sizes are untouched")

	p2, err := store.GetProduct(ctx, 2)
	require.NoError(t, err)
	for _, v := range p2.Variants {
		assert.Equal(t, 25, v.Stock)
	}
	assert.Contains(t, out.String(), "for 1 products")
}

func TestReprice(t *testing.T) {
	c, store, _ := newTestCLI(t)
	ctx := context.Background()
	require.NoError(t, c.seed(ctx, writeProducts(t), -1))

	require.NoError(t, c.dispatch(ctx, "reprice", []string{"-percent", "15"}))

	p1, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("103.49").Equal(p1.Price), "got %s", p1.Price)

	p2, err := store.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("229.99").Equal(p2.Variants[0].Price), "got %s", p2.Variants[0].Price)
	assert.True(t, decimal.RequireFromString("861.35").Equal(p2.Variants[1].Price), "got %s", p2.Variants[1].Price)
}

func TestInventory(t *testing.T) {
	c, _, out := newTestCLI(t)
	ctx := context.Background()
	require.NoError(t, c.seed(ctx, writeProducts(t), -1))
	out.Reset()

	require.NoError(t, c.dispatch(ctx, "inventory", nil))

	assert.Contains(t, out.String(), "Rope Toy")
	assert.Contains(t, out.String(), "10kg")
	assert.Contains(t, out.String(), "749.00")
}

func TestCreateAdmin(t *testing.T) {
	c, store, _ := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, c.dispatch(ctx, "create-admin", []string{"-email", "Boss@GoodBoy.test", "-password", "hunter22"}))

	u, err := store.GetUserByEmail(ctx, "boss@goodboy.test")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	c, _, _ := newTestCLI(t)

	err := c.dispatch(context.Background(), "frobnicate", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
