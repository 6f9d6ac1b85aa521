package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CartItem is one browser cart line. Price is accepted for compatibility
// with the storefront but never trusted.
type CartItem struct {
	ProductID int              `json:"productId"`
	Name      string           `json:"name" validate:"required_without=ProductID"`
	Size      string           `json:"size"`
	Quantity  int              `json:"quantity" validate:"required,min=1,max=10000"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Image     string           `json:"image"`
}

// CheckoutRequest is the body of POST /api/create-checkout-session.
type CheckoutRequest struct {
	Items []CartItem `json:"items" validate:"required,min=1,dive"`
	Email string     `json:"email" validate:"omitempty,email"`
}

// CheckoutService creates hosted checkout sessions.
type CheckoutService interface {
	// CreateSession verifies stock for every line and, only if all lines
	// are available, asks the provider for a hosted checkout page.
	CreateSession(ctx context.Context, req CheckoutRequest) (*billing.CheckoutSession, error)
}

// CheckoutConfig holds the provider-facing settings.
type CheckoutConfig struct {
	Currency string
	BaseURL  string
}

type checkoutService struct {
	catalog  CatalogService
	provider billing.Provider
	metrics  *telemetry.BusinessMetrics
	config   CheckoutConfig
}

func NewCheckoutService(catalog CatalogService, provider billing.Provider, metrics *telemetry.BusinessMetrics, config CheckoutConfig) CheckoutService {
	if config.Currency == "" {
		config.Currency = "zar"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &checkoutService{catalog: catalog, provider: provider, metrics: metrics, config: config}
}

// resolvedLine is a cart line joined to its catalog product.
type resolvedLine struct {
	product  *domain.Product
	size     string
	quantity int
	image    string
}

func (l resolvedLine) unitPrice() decimal.Decimal {
	return l.product.PriceFor(l.size)
}

func (l resolvedLine) lineItem() domain.LineItem {
	image := l.product.Image
	if image == "" {
		image = l.image
	}
	return domain.LineItem{
		ProductID: l.product.ID,
		Size:      l.size,
		Name:      l.product.DisplayName(l.size),
		Quantity:  l.quantity,
		Price:     l.unitPrice(),
		Image:     image,
	}
}

// resolveCart joins cart lines to the catalog and checks that every
// product/size has enough stock for the summed quantity requested.
func resolveCart(ctx context.Context, op string, catalog CatalogService, items []CartItem) ([]resolvedLine, error) {
	type stockKey struct {
		id   int
		size string
	}
	requested := make(map[stockKey]int, len(items))
	lines := make([]resolvedLine, 0, len(items))

	for _, item := range items {
		p, size, err := catalog.ResolveProduct(ctx, item.ProductID, item.Name, item.Size)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrVariantNotFound) {
				label := item.Name
				if label == "" {
					label = fmt.Sprintf("#%d", item.ProductID)
				}
				return nil, domain.NewValidationError(op, "items", "Product not found: "+label)
			}
			return nil, err
		}

		// Compare against what is left rather than the running sum so a
		// huge quantity cannot wrap the total.
		key := stockKey{p.ID, size}
		if available := p.StockFor(size); item.Quantity > available-requested[key] {
			want := requested[key] + item.Quantity
			if want < requested[key] {
				want = math.MaxInt
			}
			return nil, domain.InsufficientStock(op, p.DisplayName(size), want, available)
		}
		requested[key] += item.Quantity

		lines = append(lines, resolvedLine{product: p, size: size, quantity: item.Quantity, image: item.Image})
	}
	return lines, nil
}

func (s *checkoutService) CreateSession(ctx context.Context, req CheckoutRequest) (*billing.CheckoutSession, error) {
	const op = "checkout.create_session"
	log := zerolog.Ctx(ctx)

	if err := validateStruct(op, req); err != nil {
		s.metrics.CheckoutSessions.WithLabelValues("invalid").Inc()
		return nil, err
	}

	lines, err := resolveCart(ctx, op, s.catalog, req.Items)
	if err != nil {
		var se *domain.StockError
		if errors.As(err, &se) {
			s.metrics.CheckoutSessions.WithLabelValues("insufficient_stock").Inc()
			log.Info().Str("product", se.Product).Int("requested", se.Requested).Int("available", se.Available).Msg("checkout rejected: insufficient stock")
		} else {
			s.metrics.CheckoutSessions.WithLabelValues("invalid").Inc()
		}
		return nil, err
	}

	params := billing.CheckoutSessionParams{
		Currency:      s.config.Currency,
		SuccessURL:    s.config.BaseURL + "/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.config.BaseURL + "/checkout.html",
		CustomerEmail: req.Email,
	}
	for _, l := range lines {
		li := l.lineItem()
		params.Items = append(params.Items, billing.CheckoutLineItem{
			ProductID:  li.ProductID,
			Size:       li.Size,
			Name:       li.Name,
			Image:      li.Image,
			UnitAmount: domain.ToMinorUnits(li.Price),
			Quantity:   int64(li.Quantity),
		})
	}

	start := time.Now()
	session, err := s.provider.CreateCheckoutSession(ctx, params)
	s.metrics.StripeAPILatency.WithLabelValues("create_checkout_session").Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.CheckoutSessions.WithLabelValues("error").Inc()
		return nil, domain.Internal(err, op, "failed to create checkout session")
	}

	s.metrics.CheckoutSessions.WithLabelValues("created").Inc()
	log.Info().Str("session_id", session.ID).Int("lines", len(lines)).Msg("checkout session created")
	return session, nil
}
