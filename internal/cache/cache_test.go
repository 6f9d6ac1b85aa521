package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func kibble() *domain.Product {
	return &domain.Product{
		ID:    3,
		Name:  "Premium Kibble",
		Price: decimal.RequireFromString("199.99"),
		Variants: []domain.Variant{
			{Size: "2kg", Price: decimal.RequireFromString("199.99"), Stock: 3},
		},
	}
}

func TestRedisCatalog_MissThenHit(t *testing.T) {
	client, _ := setupRedis(t)
	c := NewRedisCatalog(client, time.Minute)
	ctx := context.Background()

	_, err := c.GetProducts(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.GetProduct(ctx, 3)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.SetProducts(ctx, []domain.Product{*kibble()}))
	require.NoError(t, c.SetProduct(ctx, kibble()))

	products, err := c.GetProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("199.99")))

	p, err := c.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockFor("2kg"))
}

func TestRedisCatalog_TTLAndInvalidate(t *testing.T) {
	client, mr := setupRedis(t)
	c := NewRedisCatalog(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetProduct(ctx, kibble()))
	require.NoError(t, c.SetProducts(ctx, []domain.Product{*kibble()}))

	ttl := mr.TTL(productKey(3))
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+time.Minute/5)

	require.NoError(t, c.Invalidate(ctx, 3))
	assert.False(t, mr.Exists(productKey(3)))
	assert.False(t, mr.Exists(catalogKey))

	require.NoError(t, c.SetProducts(ctx, nil))
	mr.FastForward(2 * time.Minute)
	_, err := c.GetProducts(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCatalog_CorruptEntry(t *testing.T) {
	client, mr := setupRedis(t)
	c := NewRedisCatalog(client, 0)

	require.NoError(t, mr.Set(catalogKey, "not json"))
	_, err := c.GetProducts(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestEventLedger_RecordOnce(t *testing.T) {
	client, mr := setupRedis(t)
	l := NewEventLedger(client, time.Hour)
	ctx := context.Background()
	ev := domain.PaymentEvent{EventID: "evt_1", Type: "checkout.session.completed", SessionID: "cs_1", ReceivedAt: time.Now().UTC()}

	first, err := l.RecordEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.RecordEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, time.Hour, mr.TTL(eventKeyPrefix+"evt_1"))

	require.NoError(t, l.ForgetEvent(ctx, "evt_1"))
	retry, err := l.RecordEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, retry)
}

func TestEventLedger_RedisDown(t *testing.T) {
	client, mr := setupRedis(t)
	l := NewEventLedger(client, 0)
	mr.Close()

	_, err := l.RecordEvent(context.Background(), domain.PaymentEvent{EventID: "evt_2"})
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}
