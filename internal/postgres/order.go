package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/jackc/pgx/v5"
)

var _ domain.OrderStore = (*Store)(nil)

const (
	orderColumns = `id, items, total::text, customer, payment_status, status,
		COALESCE(payment_session_id, ''), created_at, updated_at`
	paymentSessionIndex = "orders_payment_session_idx"
)

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o               domain.Order
		items, customer []byte
		total           string
		payment, status string
	)
	err := row.Scan(&o.ID, &items, &total, &customer, &payment, &status,
		&o.PaymentSessionID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, err
	}
	if o.Total, err = parseNumeric(total); err != nil {
		return nil, err
	}
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.Status = domain.FulfillmentStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode items")
	}
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode customer")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (id, items, total, customer, customer_email, payment_status,
			status, payment_session_id, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, items, o.Total.StringFixed(2), customer, domain.NormalizeEmail(o.Customer.Email),
		string(o.PaymentStatus), string(o.Status), nullIfEmpty(o.PaymentSessionID),
		o.CreatedAt, o.UpdatedAt)
	if constraint, ok := uniqueConstraint(err); ok {
		if constraint == paymentSessionIndex {
			return domain.ErrDuplicatePaymentSession
		}
		return domain.Conflict("order.create", "order already exists")
	}
	if err != nil {
		return domain.Internal(err, "order.create", "failed to create order")
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, "order.get", `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (s *Store) GetOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, domain.ErrOrderNotFound
	}
	return s.getOrder(ctx, "order.get_by_session",
		`SELECT `+orderColumns+` FROM orders WHERE payment_session_id = $1`, sessionID)
}

func (s *Store) getOrder(ctx context.Context, op, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get order")
	}
	return o, nil
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return s.listOrders(ctx, "order.list_by_email",
		`SELECT `+orderColumns+` FROM orders WHERE customer_email = $1 ORDER BY created_at DESC`,
		domain.NormalizeEmail(email))
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.listOrders(ctx, "order.list", `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (s *Store) listOrders(ctx context.Context, op, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status domain.FulfillmentStatus, at time.Time) (*domain.Order, error) {
	return s.getOrder(ctx, "order.update_status", `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+orderColumns, id, string(status), at)
}
