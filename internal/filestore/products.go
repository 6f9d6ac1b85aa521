package filestore

import (
	"context"
	"slices"
	"strings"

	"github.com/dukerupert/goodboy/internal/domain"
)

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.load()
	if err != nil {
		return nil, domain.Internal(err, "filestore.ListProducts", "failed to load products")
	}
	slices.SortFunc(products, func(a, b domain.Product) int { return a.ID - b.ID })
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.load()
	if err != nil {
		return nil, domain.Internal(err, "filestore.GetProduct", "failed to load products")
	}
	i := indexProduct(products, id)
	if i < 0 {
		return nil, domain.ErrProductNotFound
	}
	return &products[i], nil
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.load()
	if err != nil {
		return nil, domain.Internal(err, "filestore.FindProductByName", "failed to load products")
	}
	for i := range products {
		if strings.EqualFold(products[i].Name, strings.TrimSpace(name)) {
			return &products[i], nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (s *Store) UpsertProduct(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.load()
	if err != nil {
		return domain.Internal(err, "filestore.UpsertProduct", "failed to load products")
	}
	if i := indexProduct(products, p.ID); i >= 0 {
		products[i] = *p
	} else {
		products = append(products, *p)
	}
	if err := s.products.save(products); err != nil {
		return domain.Internal(err, "filestore.UpsertProduct", "failed to save products")
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int, u domain.ProductUpdate) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.load()
	if err != nil {
		return nil, domain.Internal(err, "filestore.UpdateProduct", "failed to load products")
	}
	i := indexProduct(products, id)
	if i < 0 {
		return nil, domain.ErrProductNotFound
	}

	p := products[i]
	if err := u.Apply(&p); err != nil {
		return nil, err
	}
	products[i] = p

	if err := s.products.save(products); err != nil {
		return nil, domain.Internal(err, "filestore.UpdateProduct", "failed to save products")
	}
	return &p, nil
}

func (s *Store) DecrementStock(ctx context.Context, id int, size string, qty int) (domain.StockAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adj := domain.StockAdjustment{ProductID: id, Size: size}

	products, err := s.products.load()
	if err != nil {
		return adj, domain.Internal(err, "filestore.DecrementStock", "failed to load products")
	}
	i := indexProduct(products, id)
	if i < 0 {
		return adj, domain.ErrProductNotFound
	}

	stock := &products[i].Stock
	if size != "" {
		v, ok := products[i].Variant(size)
		if !ok {
			return adj, domain.ErrVariantNotFound
		}
		stock = &v.Stock
	}

	adj.Before = *stock
	adj.After, adj.Shortfall = domain.ClampDecrement(*stock, qty)
	*stock = adj.After

	if err := s.products.save(products); err != nil {
		return adj, domain.Internal(err, "filestore.DecrementStock", "failed to save products")
	}
	return adj, nil
}

func indexProduct(products []domain.Product, id int) int {
	return slices.IndexFunc(products, func(p domain.Product) bool { return p.ID == id })
}
