package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks whether an order has been paid for.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// FulfillmentStatus is the shipping stage of an order.
type FulfillmentStatus string

const (
	FulfillmentPlaced     FulfillmentStatus = "Placed"
	FulfillmentProcessing FulfillmentStatus = "Processing"
	FulfillmentShipped    FulfillmentStatus = "Shipped"
	FulfillmentDelivered  FulfillmentStatus = "Delivered"
)

// FulfillmentStages lists the fulfillment stages in order.
var FulfillmentStages = []FulfillmentStatus{
	FulfillmentPlaced,
	FulfillmentProcessing,
	FulfillmentShipped,
	FulfillmentDelivered,
}

// Stage returns the index of the status in FulfillmentStages, or -1.
func (s FulfillmentStatus) Stage() int {
	for i, st := range FulfillmentStages {
		if strings.EqualFold(string(st), string(s)) {
			return i
		}
	}
	return -1
}

// ParseFulfillmentStatus normalizes a status name.
func ParseFulfillmentStatus(s string) (FulfillmentStatus, bool) {
	idx := FulfillmentStatus(s).Stage()
	if idx < 0 {
		return "", false
	}
	return FulfillmentStages[idx], true
}

// CanTransitionTo reports whether moving from s to next goes forward.
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	from, to := s.Stage(), next.Stage()
	return from >= 0 && to > from
}

// LineItem is one purchased product line.
type LineItem struct {
	ProductID int             `json:"productId,omitempty"`
	Size      string          `json:"size,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// Subtotal is quantity times unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Customer is the buyer snapshot stored with an order.
type Customer struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	Zip           string `json:"zip,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// Order is a placed order.
type Order struct {
	ID               string            `json:"id"`
	Items            []LineItem        `json:"items"`
	Total            decimal.Decimal   `json:"total"`
	Customer         Customer          `json:"customer"`
	PaymentStatus    PaymentStatus     `json:"paymentStatus"`
	Status           FulfillmentStatus `json:"status"`
	PaymentSessionID string            `json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// NewOrderID returns a fresh order identifier.
func NewOrderID() string {
	return "ORD-" + strings.ToUpper(uuid.NewString())
}

// SumLineItems totals the given items.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// NewOrder builds an order with a generated id and a total computed from
// its items. Fulfillment always starts at Placed.
func NewOrder(items []LineItem, customer Customer, payment PaymentStatus, now time.Time) *Order {
	return &Order{
		ID:            NewOrderID(),
		Items:         items,
		Total:         SumLineItems(items),
		Customer:      customer,
		PaymentStatus: payment,
		Status:        FulfillmentPlaced,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
}

// OrderStore persists orders.
type OrderStore interface {
	// CreateOrder inserts a new order. An order whose PaymentSessionID is
	// already stored fails with ErrDuplicatePaymentSession.
	CreateOrder(ctx context.Context, o *Order) error

	// GetOrder returns the order or ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (*Order, error)

	// GetOrderByPaymentSession returns the order created for a payment
	// session or ErrOrderNotFound.
	GetOrderByPaymentSession(ctx context.Context, sessionID string) (*Order, error)

	// ListOrdersByEmail returns a customer's orders, newest first.
	ListOrdersByEmail(ctx context.Context, email string) ([]Order, error)

	// ListOrders returns all orders, newest first.
	ListOrders(ctx context.Context) ([]Order, error)

	// UpdateOrderStatus sets the fulfillment status.
	UpdateOrderStatus(ctx context.Context, id string, status FulfillmentStatus, at time.Time) (*Order, error)
}

// Order-related domain errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrDuplicatePaymentSession = &Error{Code: ECONFLICT, Message: "An order already exists for this payment session"}
	ErrEmptyOrder              = &Error{Code: EINVALID, Message: "Order must contain at least one item"}
	ErrTotalMismatch           = &Error{Code: EINVALID, Message: "Order total does not match items"}
	ErrInvalidStatus           = &Error{Code: EINVALID, Message: "Unknown order status"}
	ErrStatusTransition        = &Error{Code: ECONFLICT, Message: "Order status can only move forward"}
	ErrOrderingDisabled        = &Error{Code: ENOTIMPL, Message: "Direct ordering is disabled; use checkout"}
)
