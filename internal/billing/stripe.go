package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeProvider implements Provider using Stripe Checkout.
type StripeProvider struct {
	config   StripeConfig
	verifier WebhookVerifier
}

// Compile-time check that StripeProvider implements Provider.
var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a Stripe billing provider and sets the SDK key.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyZAR)
	}

	stripe.Key = cfg.APIKey

	return &StripeProvider{
		config:   cfg,
		verifier: WebhookVerifier{Secret: cfg.WebhookSecret},
	}, nil
}

// CreateCheckoutSession creates a payment-mode Checkout Session. Each line
// carries the catalog product id and size in product metadata.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if len(params.Items) == 0 {
		return nil, ErrEmptyCheckout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	currency := params.Currency
	if currency == "" {
		currency = s.config.Currency
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.Items))
	for _, item := range params.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
			Metadata: map[string]string{
				MetadataProductID: strconv.Itoa(item.ProductID),
				MetadataSize:      item.Size,
			},
		}
		if item.Image != "" {
			productData.Images = []*string{stripe.String(item.Image)}
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   params.Metadata,
	}
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := session.New(sp)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ListLineItems pages through a session's line items with products expanded.
func (s *StripeProvider) ListLineItems(ctx context.Context, sessionID string) ([]PurchasedItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.AddExpand("data.price.product")

	var items []PurchasedItem
	iter := session.ListLineItems(params)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, purchasedItemFromStripe(iter.LineItem()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err)
	}

	return items, nil
}

// ParseWebhookEvent verifies and decodes a webhook delivery.
func (s *StripeProvider) ParseWebhookEvent(payload []byte, signature string) (*Event, error) {
	return s.verifier.ParseEvent(payload, signature)
}

func purchasedItemFromStripe(li *stripe.LineItem) PurchasedItem {
	item := PurchasedItem{
		Name:        li.Description,
		Quantity:    li.Quantity,
		AmountTotal: li.AmountTotal,
	}
	if li.Price != nil && li.Price.Product != nil {
		p := li.Price.Product
		if id, err := strconv.Atoi(p.Metadata[MetadataProductID]); err == nil {
			item.ProductID = id
		}
		item.Size = p.Metadata[MetadataSize]
		if item.Name == "" {
			item.Name = p.Name
		}
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
	}
	return item
}

// WebhookVerifier checks Stripe-Signature headers against a signing secret.
type WebhookVerifier struct {
	Secret string
}

// ParseEvent verifies the payload and decodes checkout session events.
func (v WebhookVerifier) ParseEvent(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidWebhookSignature)
	}

	raw, err := webhook.ConstructEventWithOptions(payload, signature, v.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	event := &Event{ID: raw.ID, Type: string(raw.Type)}

	if raw.Type == stripe.EventTypeCheckoutSessionCompleted ||
		raw.Type == stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded {
		if raw.Data == nil {
			return nil, ErrMalformedEvent
		}
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		event.Session = completedSessionFromStripe(&cs)
	}

	return event, nil
}

func completedSessionFromStripe(cs *stripe.CheckoutSession) *CompletedSession {
	out := &CompletedSession{
		ID:            cs.ID,
		PaymentStatus: string(cs.PaymentStatus),
		Currency:      string(cs.Currency),
		AmountTotal:   cs.AmountTotal,
		CustomerEmail: cs.CustomerEmail,
		Metadata:      cs.Metadata,
	}
	if d := cs.CustomerDetails; d != nil {
		if d.Email != "" {
			out.CustomerEmail = d.Email
		}
		out.CustomerName = d.Name
		if a := d.Address; a != nil {
			out.Address = Address{
				Line1:      a.Line1,
				Line2:      a.Line2,
				City:       a.City,
				State:      a.State,
				PostalCode: a.PostalCode,
				Country:    a.Country,
			}
		}
	}
	return out
}
