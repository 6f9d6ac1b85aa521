package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dukerupert/goodboy/internal/cache"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CatalogService provides product reads, admin updates and stock movements.
type CatalogService interface {
	// ListProducts returns all products ordered by id, served from the
	// cache when one is configured.
	ListProducts(ctx context.Context) ([]domain.Product, error)

	GetProduct(ctx context.Context, id int) (*domain.Product, error)

	// ResolveProduct finds the product a cart line refers to, always from
	// the store. productID wins over name; a name of the form "Name (Size)"
	// selects that size when size is empty. The returned size is the
	// variant's canonical label.
	ResolveProduct(ctx context.Context, productID int, name, size string) (*domain.Product, string, error)

	UpdateProduct(ctx context.Context, id int, u domain.ProductUpdate) (*domain.Product, error)

	// DecrementStock applies a clamped decrement and invalidates the cache.
	DecrementStock(ctx context.Context, productID int, size string, qty int) (domain.StockAdjustment, error)
}

type catalogService struct {
	store   domain.ProductStore
	cache   cache.Catalog
	metrics *telemetry.BusinessMetrics
	group   singleflight.Group
}

// NewCatalogService creates a CatalogService. c may be nil to disable
// caching.
func NewCatalogService(store domain.ProductStore, c cache.Catalog, metrics *telemetry.BusinessMetrics) CatalogService {
	return &catalogService{store: store, cache: c, metrics: metrics}
}

func (s *catalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if s.cache == nil {
		return s.store.ListProducts(ctx)
	}

	products, err := s.cache.GetProducts(ctx)
	if err == nil {
		s.metrics.CatalogCache.WithLabelValues("hit").Inc()
		return products, nil
	}
	s.logCacheError(ctx, err)

	v, err, _ := s.group.Do("products", func() (any, error) {
		products, err := s.store.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetProducts(ctx, products); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to fill catalog cache")
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *catalogService) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	if s.cache == nil {
		return s.store.GetProduct(ctx, id)
	}

	p, err := s.cache.GetProduct(ctx, id)
	if err == nil {
		s.metrics.CatalogCache.WithLabelValues("hit").Inc()
		return p, nil
	}
	s.logCacheError(ctx, err)

	v, err, _ := s.group.Do("product:"+strconv.Itoa(id), func() (any, error) {
		p, err := s.store.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetProduct(ctx, p); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int("product_id", id).Msg("failed to fill product cache")
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *catalogService) logCacheError(ctx context.Context, err error) {
	if errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.CatalogCache.WithLabelValues("miss").Inc()
		return
	}
	s.metrics.CatalogCache.WithLabelValues("error").Inc()
	zerolog.Ctx(ctx).Warn().Err(err).Msg("catalog cache unavailable, reading from store")
}

func (s *catalogService) ResolveProduct(ctx context.Context, productID int, name, size string) (*domain.Product, string, error) {
	var (
		p   *domain.Product
		err error
	)

	switch {
	case productID > 0:
		p, err = s.store.GetProduct(ctx, productID)
	case name != "":
		base, nameSize := domain.SplitVariantName(name)
		if nameSize != "" {
			p, err = s.store.FindProductByName(ctx, base)
			if err == nil && size == "" {
				size = nameSize
			}
		}
		if nameSize == "" || errors.Is(err, domain.ErrProductNotFound) {
			p, err = s.store.FindProductByName(ctx, name)
		}
	default:
		return nil, "", domain.ErrProductNotFound
	}
	if err != nil {
		return nil, "", err
	}

	if size == "" {
		return p, "", nil
	}
	v, ok := p.Variant(size)
	if !ok {
		return nil, "", domain.ErrVariantNotFound
	}
	return p, v.Size, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id int, u domain.ProductUpdate) (*domain.Product, error) {
	p, err := s.store.UpdateProduct(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *catalogService) DecrementStock(ctx context.Context, productID int, size string, qty int) (domain.StockAdjustment, error) {
	if qty <= 0 {
		return domain.StockAdjustment{}, domain.Invalid("catalog.decrement", fmt.Sprintf("quantity must be positive, got %d", qty))
	}

	adj, err := s.store.DecrementStock(ctx, productID, size, qty)
	if err != nil {
		return adj, err
	}
	s.invalidate(ctx, productID)
	return adj, nil
}

func (s *catalogService) invalidate(ctx context.Context, ids ...int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Ints("product_ids", ids).Msg("failed to invalidate catalog cache")
	}
}
