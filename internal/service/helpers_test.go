package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/goodboy/internal/auth"
	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/filestore"
	"github.com/dukerupert/goodboy/internal/jobs"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testWebhookSecret = "whsec_test_secret"

// recordingQueue captures enqueued jobs.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type testEnv struct {
	store    *filestore.Store
	provider *billing.MockProvider
	queue    *recordingQueue
	metrics  *telemetry.BusinessMetrics
	catalog  CatalogService
	checkout CheckoutService
	orders   OrderService
	users    UserService
}

func newTestEnv(t *testing.T, direct bool) *testEnv {
	t.Helper()

	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		provider: billing.NewMockProvider(testWebhookSecret),
		queue:    &recordingQueue{},
		metrics:  telemetry.NewTestMetrics(),
	}
	env.catalog = NewCatalogService(store, nil, env.metrics)
	env.checkout = NewCheckoutService(env.catalog, env.provider, env.metrics, CheckoutConfig{
		Currency: "zar",
		BaseURL:  "http://shop.test/",
	})
	env.orders = NewOrderService(store, env.catalog, store, env.provider, env.queue, env.metrics, OrderServiceConfig{
		DirectOrdering: direct,
	})
	env.users = NewUserService(store, auth.NewHasher(bcrypt.MinCost), auth.NewTokenIssuer("test-secret", time.Hour), env.metrics)

	for _, p := range testCatalog() {
		require.NoError(t, store.UpsertProduct(context.Background(), &p))
	}
	return env
}

func testCatalog() []domain.Product {
	return []domain.Product{
		{
			ID:    1,
			Name:  "Rope Toy",
			Image: "/img/rope.jpg",
			Price: decimal.RequireFromString("89.99"),
			Stock: 5,
		},
		{
			ID:    2,
			Name:  "Premium Kibble",
			Image: "/img/kibble.jpg",
			Price: decimal.RequireFromString("199.99"),
			Variants: []domain.Variant{
				{Size: "2kg", Price: decimal.RequireFromString("199.99"), Stock: 3},
				{Size: "10kg", Price: decimal.RequireFromString("749.00"), Stock: 1},
			},
		},
		{
			ID:    3,
			Name:  "Dog Bed",
			Price: decimal.RequireFromString("450.00"),
			Stock: 0,
		},
	}
}

func (e *testEnv) stock(t *testing.T, id int, size string) int {
	t.Helper()
	p, err := e.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockFor(size)
}
