// Package cache holds the Redis-backed catalog cache and payment event ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	catalogKey        = "goodboy:catalog:products"
	productKeyPrefix  = "goodboy:catalog:product:"
	eventKeyPrefix    = "goodboy:payment_event:"
	defaultCatalogTTL = 5 * time.Minute
	defaultEventTTL   = 7 * 24 * time.Hour
)

// Catalog caches product reads.
type Catalog interface {
	GetProducts(ctx context.Context) ([]domain.Product, error)
	SetProducts(ctx context.Context, products []domain.Product) error
	GetProduct(ctx context.Context, id int) (*domain.Product, error)
	SetProduct(ctx context.Context, p *domain.Product) error
	Invalidate(ctx context.Context, ids ...int) error
}

// Connect parses a redis URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisCatalog stores JSON-encoded products with a jittered TTL.
type RedisCatalog struct {
	client  *redis.Client
	baseTTL time.Duration
}

var _ Catalog = (*RedisCatalog)(nil)

func NewRedisCatalog(client *redis.Client, ttl time.Duration) *RedisCatalog {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &RedisCatalog{client: client, baseTTL: ttl}
}

func (c *RedisCatalog) GetProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.get(ctx, catalogKey, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *RedisCatalog) SetProducts(ctx context.Context, products []domain.Product) error {
	return c.set(ctx, catalogKey, products)
}

func (c *RedisCatalog) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	var p domain.Product
	if err := c.get(ctx, productKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RedisCatalog) SetProduct(ctx context.Context, p *domain.Product) error {
	return c.set(ctx, productKey(p.ID), p)
}

// Invalidate drops the list entry and the given products.
func (c *RedisCatalog) Invalidate(ctx context.Context, ids ...int) error {
	keys := []string{catalogKey}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *RedisCatalog) get(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (c *RedisCatalog) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	jitter := time.Duration(rand.Int64N(int64(c.baseTTL/5) + 1))
	if err := c.client.Set(ctx, key, data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func productKey(id int) string {
	return productKeyPrefix + strconv.Itoa(id)
}

// EventLedger records processed payment events with SET NX so concurrent
// replicas agree on which delivery wins.
type EventLedger struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.EventLedger = (*EventLedger)(nil)

func NewEventLedger(client *redis.Client, ttl time.Duration) *EventLedger {
	if ttl <= 0 {
		ttl = defaultEventTTL
	}
	return &EventLedger{client: client, ttl: ttl}
}

func (l *EventLedger) RecordEvent(ctx context.Context, e domain.PaymentEvent) (bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return false, domain.Internal(err, "cache.RecordEvent", "failed to encode event")
	}
	ok, err := l.client.SetNX(ctx, eventKeyPrefix+e.EventID, data, l.ttl).Result()
	if err != nil {
		return false, domain.Internal(err, "cache.RecordEvent", "failed to record event")
	}
	return ok, nil
}

func (l *EventLedger) ForgetEvent(ctx context.Context, eventID string) error {
	if err := l.client.Del(ctx, eventKeyPrefix+eventID).Err(); err != nil {
		return domain.Internal(err, "cache.ForgetEvent", "failed to delete event")
	}
	return nil
}
