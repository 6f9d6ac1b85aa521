// Package billing talks to the hosted-checkout payment provider.
package billing

import (
	"context"
)

// Provider events that carry a completed checkout session. A completed
// session paid with a delayed method arrives unpaid and is followed by an
// async_payment_succeeded event.
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// Session payment statuses that mean money was collected.
const (
	SessionPaid              = "paid"
	SessionNoPaymentRequired = "no_payment_required"
)

// Metadata keys carried on provider products so purchased lines can be joined
// back to catalog products by id.
const (
	MetadataProductID = "product_id"
	MetadataSize      = "size"
)

// Provider defines the payment operations the store relies on.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout page and returns its
	// redirect URL.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)

	// ListLineItems returns what was actually purchased in a session, as
	// recorded by the provider.
	ListLineItems(ctx context.Context, sessionID string) ([]PurchasedItem, error)

	// ParseWebhookEvent verifies the signature header and decodes the event.
	// Returns ErrInvalidWebhookSignature when verification fails.
	ParseWebhookEvent(payload []byte, signature string) (*Event, error)
}

// CheckoutLineItem is one line of a checkout session request.
type CheckoutLineItem struct {
	ProductID  int
	Size       string
	Name       string
	Image      string
	UnitAmount int64 // minor units
	Quantity   int64
}

// CheckoutSessionParams contains parameters for creating a checkout session.
type CheckoutSessionParams struct {
	Currency      string
	Items         []CheckoutLineItem
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// CheckoutSession is a created hosted checkout page.
type CheckoutSession struct {
	ID  string
	URL string
}

// PurchasedItem is a provider-recorded line of a completed session.
type PurchasedItem struct {
	ProductID   int // zero when the provider product carries no id
	Size        string
	Name        string
	Image       string
	Quantity    int64
	AmountTotal int64 // minor units, for the whole line
}

// Event is a verified webhook event.
type Event struct {
	ID      string
	Type    string
	Session *CompletedSession // set for checkout.session.* events
}

// CompletedSession is the session payload of a checkout event.
type CompletedSession struct {
	ID            string
	PaymentStatus string
	Currency      string
	AmountTotal   int64
	CustomerEmail string
	CustomerName  string
	Address       Address
	Metadata      map[string]string
}

// Address is the billing address collected by the provider.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}
