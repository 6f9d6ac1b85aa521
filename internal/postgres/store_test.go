package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/goodboy/internal"
	"github.com/dukerupert/goodboy/internal/storetest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("goodboy"),
		postgres.WithUsername("goodboy"),
		postgres.WithPassword("goodboy"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, internal.RunMigrations(ctx, db, zerolog.Nop()))

	return pool
}

func TestPostgresStoreContract(t *testing.T) {
	pool := setupPool(t)

	storetest.Run(t, func(t *testing.T) storetest.Stores {
		_, err := pool.Exec(context.Background(),
			`TRUNCATE products, product_variants, users, orders, payment_events`)
		require.NoError(t, err)

		s := New(pool)
		return storetest.Stores{Products: s, Users: s, Orders: s, Events: s}
	})
}
