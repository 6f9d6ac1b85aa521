package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/jobs"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxTotalDrift is the largest accepted difference between a client total
// and the server-computed total.
var maxTotalDrift = decimal.RequireFromString("0.01")

// DirectOrderRequest is the body of POST /api/orders.
type DirectOrderRequest struct {
	Items    []CartItem       `json:"items" validate:"required,min=1,dive"`
	Customer CustomerInput    `json:"customer" validate:"required"`
	Total    *decimal.Decimal `json:"total,omitempty"`
}

// CustomerInput is the buyer block of a direct order.
type CustomerInput struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Address       string `json:"address"`
	City          string `json:"city"`
	Zip           string `json:"zip"`
	PaymentMethod string `json:"paymentMethod"`
}

// OrderService manages order creation, queries and fulfillment.
type OrderService interface {
	// CreateDirect validates and persists a client-submitted order. Only
	// available when direct ordering is enabled.
	CreateDirect(ctx context.Context, req DirectOrderRequest) (*domain.Order, error)

	Get(ctx context.Context, id string) (*domain.Order, error)

	// History returns the orders placed with the given email, newest first.
	History(ctx context.Context, email string) ([]domain.Order, error)

	ListAll(ctx context.Context) ([]domain.Order, error)

	// UpdateStatus moves an order forward along its fulfillment stages.
	UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error)

	// HandlePaymentEvent turns a verified provider event into at most one
	// paid order. Redeliveries of the same event or session are no-ops.
	HandlePaymentEvent(ctx context.Context, event *billing.Event) error
}

// OrderServiceConfig selects the order creation strategy.
type OrderServiceConfig struct {
	DirectOrdering bool
}

type orderService struct {
	store    domain.OrderStore
	catalog  CatalogService
	ledger   domain.EventLedger
	provider billing.Provider
	queue    jobs.Enqueuer
	metrics  *telemetry.BusinessMetrics
	config   OrderServiceConfig
	now      func() time.Time
}

// NewOrderService creates an OrderService. provider and ledger may be nil
// when direct ordering is enabled.
func NewOrderService(
	store domain.OrderStore,
	catalog CatalogService,
	ledger domain.EventLedger,
	provider billing.Provider,
	queue jobs.Enqueuer,
	metrics *telemetry.BusinessMetrics,
	config OrderServiceConfig,
) OrderService {
	return &orderService{
		store:    store,
		catalog:  catalog,
		ledger:   ledger,
		provider: provider,
		queue:    queue,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

func (s *orderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *orderService) History(ctx context.Context, email string) ([]domain.Order, error) {
	if email == "" {
		return nil, domain.ErrAuthRequired
	}
	return s.store.ListOrdersByEmail(ctx, email)
}

func (s *orderService) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *orderService) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	next, ok := domain.ParseFulfillmentStatus(status)
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	current, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, domain.ErrStatusTransition
	}

	updated, err := s.store.UpdateOrderStatus(ctx, id, next, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanges.WithLabelValues(string(next)).Inc()
	zerolog.Ctx(ctx).Info().
		Str("order_id", id).
		Str("from", string(current.Status)).
		Str("to", string(next)).
		Msg("order status updated")
	return updated, nil
}

func (s *orderService) CreateDirect(ctx context.Context, req DirectOrderRequest) (*domain.Order, error) {
	const op = "order.create_direct"

	if !s.config.DirectOrdering {
		return nil, domain.ErrOrderingDisabled
	}
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	lines, err := resolveCart(ctx, op, s.catalog, req.Items)
	if err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, len(lines))
	for i, l := range lines {
		items[i] = l.lineItem()
	}

	customer := domain.Customer{
		Name:          req.Customer.Name,
		Email:         req.Customer.Email,
		Address:       req.Customer.Address,
		City:          req.Customer.City,
		Zip:           req.Customer.Zip,
		PaymentMethod: req.Customer.PaymentMethod,
	}
	order := domain.NewOrder(items, customer, domain.PaymentStatusPending, s.now())

	if req.Total != nil && req.Total.Sub(order.Total).Abs().GreaterThan(maxTotalDrift) {
		return nil, domain.ErrTotalMismatch
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.decrementStock(ctx, order)
	s.recordOrder(ctx, order, "direct")
	return order, nil
}

func (s *orderService) HandlePaymentEvent(ctx context.Context, event *billing.Event) (err error) {
	const op = "order.handle_payment_event"
	log := zerolog.Ctx(ctx).With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	if event.Type != billing.EventCheckoutSessionCompleted &&
		event.Type != billing.EventCheckoutSessionAsyncPaymentSucceeded {
		log.Debug().Msg("ignoring payment event")
		return nil
	}
	session := event.Session
	if session == nil {
		return domain.Invalid(op, "event carries no checkout session")
	}
	log = log.With().Str("session_id", session.ID).Logger()

	if session.PaymentStatus != billing.SessionPaid && session.PaymentStatus != billing.SessionNoPaymentRequired {
		log.Info().Str("payment_status", session.PaymentStatus).Msg("checkout completed without payment, waiting for async confirmation")
		return nil
	}

	if s.ledger == nil || s.provider == nil {
		return domain.Errorf(domain.ENOTIMPL, op, "payment events are not handled in direct ordering mode")
	}

	fresh, err := s.ledger.RecordEvent(ctx, domain.PaymentEvent{
		EventID:    event.ID,
		Type:       event.Type,
		SessionID:  session.ID,
		ReceivedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	if !fresh {
		s.metrics.WebhookDuplicates.WithLabelValues("event").Inc()
		log.Info().Msg("duplicate payment event skipped")
		return nil
	}

	// Until the order exists a failure must let the provider's retry through.
	created := false
	defer func() {
		if err != nil && !created {
			if forgetErr := s.ledger.ForgetEvent(context.WithoutCancel(ctx), event.ID); forgetErr != nil {
				log.Error().Err(forgetErr).Msg("failed to release payment event")
			}
		}
	}()

	if _, err := s.store.GetOrderByPaymentSession(ctx, session.ID); err == nil {
		s.metrics.WebhookDuplicates.WithLabelValues("session").Inc()
		log.Info().Msg("order already exists for session")
		return nil
	} else if !errors.Is(err, domain.ErrOrderNotFound) {
		return err
	}

	start := time.Now()
	purchased, err := s.provider.ListLineItems(ctx, session.ID)
	s.metrics.StripeAPILatency.WithLabelValues("list_line_items").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Internal(err, op, "failed to list session line items")
	}
	if len(purchased) == 0 {
		return domain.ErrEmptyOrder
	}

	order := domain.NewOrder(s.purchasedLineItems(ctx, purchased), sessionCustomer(session), domain.PaymentStatusPaid, s.now())
	order.PaymentSessionID = session.ID

	if err := s.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, domain.ErrDuplicatePaymentSession) {
			s.metrics.WebhookDuplicates.WithLabelValues("session").Inc()
			log.Info().Msg("order already exists for session")
			created = true
			return nil
		}
		return err
	}
	created = true

	if session.AmountTotal > 0 {
		if charged := domain.FromMinorUnits(session.AmountTotal); !charged.Equal(order.Total) {
			log.Warn().
				Str("order_id", order.ID).
				Str("charged", charged.StringFixed(2)).
				Str("order_total", order.Total.StringFixed(2)).
				Msg("order total differs from amount charged")
		}
	}

	s.decrementStock(ctx, order)
	s.recordOrder(ctx, order, "webhook")
	return nil
}

// purchasedLineItems converts provider lines into order items. The catalog
// join is best effort: the provider's record of what was bought wins.
func (s *orderService) purchasedLineItems(ctx context.Context, purchased []billing.PurchasedItem) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(purchased))
	for _, p := range purchased {
		li := domain.LineItem{
			ProductID: p.ProductID,
			Size:      p.Size,
			Name:      p.Name,
			Quantity:  int(p.Quantity),
			Price:     domain.UnitPriceFromTotal(p.AmountTotal, p.Quantity),
			Image:     p.Image,
		}
		if li.ProductID == 0 {
			if product, size, err := s.catalog.ResolveProduct(ctx, 0, p.Name, p.Size); err == nil {
				li.ProductID = product.ID
				li.Size = size
				if li.Image == "" {
					li.Image = product.Image
				}
			} else {
				zerolog.Ctx(ctx).Warn().Err(err).Str("item", p.Name).Msg("purchased item does not match a catalog product")
			}
		}
		items = append(items, li)
	}
	return items
}

func sessionCustomer(session *billing.CompletedSession) domain.Customer {
	address := session.Address.Line1
	if session.Address.Line2 != "" {
		address += ", " + session.Address.Line2
	}
	return domain.Customer{
		Name:          session.CustomerName,
		Email:         session.CustomerEmail,
		Address:       address,
		City:          session.Address.City,
		Zip:           session.Address.PostalCode,
		PaymentMethod: "stripe",
	}
}

// decrementStock applies clamped decrements for every catalog line of the
// order. Failures are logged; the order stands either way.
func (s *orderService) decrementStock(ctx context.Context, order *domain.Order) {
	log := zerolog.Ctx(ctx)
	for _, li := range order.Items {
		if li.ProductID == 0 {
			continue
		}
		adj, err := s.catalog.DecrementStock(ctx, li.ProductID, li.Size, li.Quantity)
		if err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Int("product_id", li.ProductID).Str("size", li.Size).Msg("failed to decrement stock")
			continue
		}
		if adj.Oversold() {
			s.metrics.StockOversold.WithLabelValues(strconv.Itoa(li.ProductID)).Inc()
			s.metrics.StockOversoldUnits.Add(float64(adj.Shortfall))
			log.Warn().
				Str("order_id", order.ID).
				Int("product_id", li.ProductID).
				Str("size", li.Size).
				Int("before", adj.Before).
				Int("shortfall", adj.Shortfall).
				Msg("stock oversold")
		}
	}
}

// recordOrder emits metrics and enqueues the confirmation email.
func (s *orderService) recordOrder(ctx context.Context, order *domain.Order, source string) {
	log := zerolog.Ctx(ctx)

	s.metrics.OrdersCreated.WithLabelValues(source).Inc()
	total, _ := order.Total.Float64()
	s.metrics.OrderValue.Observe(total)
	s.metrics.OrderItemCount.Observe(float64(len(order.Items)))

	log.Info().
		Str("order_id", order.ID).
		Str("source", source).
		Str("total", order.Total.StringFixed(2)).
		Int("items", len(order.Items)).
		Msg("order created")

	if s.queue == nil {
		return
	}
	if err := jobs.EnqueueOrderConfirmation(ctx, s.queue, order); err != nil {
		s.metrics.JobsFailed.WithLabelValues(jobs.JobTypeOrderConfirmation).Inc()
		log.Error().Err(err).Str("order_id", order.ID).Msg("failed to enqueue order confirmation")
		return
	}
	s.metrics.JobsEnqueued.WithLabelValues(jobs.JobTypeOrderConfirmation).Inc()
}
