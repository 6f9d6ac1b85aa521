package filestore

import (
	"context"
	"slices"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
)

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.orders.load()
	if err != nil {
		return domain.Internal(err, "filestore.CreateOrder", "failed to load orders")
	}
	if o.PaymentSessionID != "" && slices.ContainsFunc(orders, func(x domain.Order) bool {
		return x.PaymentSessionID == o.PaymentSessionID
	}) {
		return domain.ErrDuplicatePaymentSession
	}

	orders = append(orders, *o)
	if err := s.orders.save(orders); err != nil {
		return domain.Internal(err, "filestore.CreateOrder", "failed to save orders")
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOrder("filestore.GetOrder", func(o domain.Order) bool { return o.ID == id })
}

func (s *Store) GetOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, domain.ErrOrderNotFound
	}
	return s.findOrder("filestore.GetOrderByPaymentSession", func(o domain.Order) bool {
		return o.PaymentSessionID == sessionID
	})
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	email = domain.NormalizeEmail(email)
	return s.listOrders("filestore.ListOrdersByEmail", func(o domain.Order) bool {
		return domain.NormalizeEmail(o.Customer.Email) == email
	})
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.listOrders("filestore.ListOrders", func(domain.Order) bool { return true })
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status domain.FulfillmentStatus, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.orders.load()
	if err != nil {
		return nil, domain.Internal(err, "filestore.UpdateOrderStatus", "failed to load orders")
	}
	i := slices.IndexFunc(orders, func(o domain.Order) bool { return o.ID == id })
	if i < 0 {
		return nil, domain.ErrOrderNotFound
	}

	orders[i].Status = status
	orders[i].UpdatedAt = at.UTC()
	if err := s.orders.save(orders); err != nil {
		return nil, domain.Internal(err, "filestore.UpdateOrderStatus", "failed to save orders")
	}
	updated := orders[i]
	return &updated, nil
}

func (s *Store) findOrder(op string, match func(domain.Order) bool) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.orders.load()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load orders")
	}
	i := slices.IndexFunc(orders, match)
	if i < 0 {
		return nil, domain.ErrOrderNotFound
	}
	return &orders[i], nil
}

func (s *Store) listOrders(op string, match func(domain.Order) bool) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.orders.load()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load orders")
	}

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if match(o) {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}
