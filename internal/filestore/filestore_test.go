package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Stores {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		return storetest.Stores{Products: s, Users: s, Orders: s, Events: s}
	})
}

func TestFileStore_ReadsHandWrittenCatalog(t *testing.T) {
	dir := t.TempDir()
	catalog := `[
  {"id": 1, "name": "Treat", "price": 10.5, "stock": 3},
  {"id": 2, "name": "Kibble", "price": 199.99, "stock": 0,
   "variants": [{"size": "2kg", "price": 199.99, "stock": 4}]}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProductsFile), []byte(catalog), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "10.5", products[0].Price.String())
	assert.Equal(t, 4, products[1].StockFor("2kg"))
}

func TestFileStore_MissingAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, OrdersFile), []byte("  \n"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)

	orders, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestFileStore_CorruptFileIsInternal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProductsFile), []byte("{not json"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)

	_, err = s.ListProducts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "products.json")
}

func TestFileStore_PersistsPasswordHash(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.CreateUser(context.Background(), &domain.User{
		ID: "u-1", FirstName: "Rex", LastName: "B", Email: "Rex@Example.com", PasswordHash: "$2a$04$abc",
	}))

	data, err := os.ReadFile(filepath.Join(dir, UsersFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"password": "$2a$04$abc"`)
	assert.Contains(t, string(data), `"email": "rex@example.com"`)
}
