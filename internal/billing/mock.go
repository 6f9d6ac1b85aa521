package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockProvider is a billing provider for tests and local development.
// Webhooks are verified with a real WebhookVerifier so signature handling
// is exercised end to end.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing session creation behavior
	CreateCheckoutSessionFunc func(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)

	// ListLineItemsFunc allows customizing line item retrieval behavior
	ListLineItemsFunc func(ctx context.Context, sessionID string) ([]PurchasedItem, error)

	// Verifier checks webhook signatures.
	Verifier WebhookVerifier

	// LineItems maps session ids to purchased items for ListLineItems.
	LineItems map[string][]PurchasedItem

	// Sessions records created session params by id.
	Sessions map[string]CheckoutSessionParams

	mu      sync.Mutex
	callLog []string
}

// Compile-time check that MockProvider implements Provider.
var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider verifying webhooks with secret.
func NewMockProvider(secret string) *MockProvider {
	return &MockProvider{
		Verifier:  WebhookVerifier{Secret: secret},
		LineItems: make(map[string][]PurchasedItem),
		Sessions:  make(map[string]CheckoutSessionParams),
	}
}

// CreateCheckoutSession records the request and returns a fake hosted URL.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	m.log(fmt.Sprintf("CreateCheckoutSession(%d items)", len(params.Items)))

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	if len(params.Items) == 0 {
		return nil, ErrEmptyCheckout
	}

	id := "cs_test_" + uuid.NewString()
	m.mu.Lock()
	m.Sessions[id] = params
	m.mu.Unlock()

	return &CheckoutSession{ID: id, URL: "https://checkout.stripe.test/pay/" + id}, nil
}

// ListLineItems returns the configured items for the session.
func (m *MockProvider) ListLineItems(ctx context.Context, sessionID string) ([]PurchasedItem, error) {
	m.log("ListLineItems(" + sessionID + ")")

	if m.ListLineItemsFunc != nil {
		return m.ListLineItemsFunc(ctx, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.LineItems[sessionID]
	if !ok {
		return nil, &StripeError{Message: "No such checkout session: " + sessionID, Code: "resource_missing", HTTPStatus: 404}
	}
	return items, nil
}

// ParseWebhookEvent verifies with the configured secret.
func (m *MockProvider) ParseWebhookEvent(payload []byte, signature string) (*Event, error) {
	m.log("ParseWebhookEvent")
	return m.Verifier.ParseEvent(payload, signature)
}

// Calls returns a copy of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.callLog...)
}

// CallCount counts calls whose log entry starts with prefix.
func (m *MockProvider) CallCount(prefix string) int {
	n := 0
	for _, c := range m.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (m *MockProvider) log(entry string) {
	m.mu.Lock()
	m.callLog = append(m.callLog, entry)
	m.mu.Unlock()
}
