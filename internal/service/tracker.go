package service

import (
	"context"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
)

// Stage states shown by the order tracker.
const (
	StageCompleted = "completed"
	StageActive    = "active"
	StagePending   = "pending"
)

// stageOffsets are the estimated days after placement for each stage.
var stageOffsets = []int{0, 1, 2, 5}

// TrackingStage is one step of the fulfillment timeline.
type TrackingStage struct {
	Name  domain.FulfillmentStatus `json:"name"`
	Date  time.Time                `json:"date"`
	State string                   `json:"state"`
}

// Tracking is the order tracker view of an order.
type Tracking struct {
	OrderID       string                   `json:"orderId"`
	Status        domain.FulfillmentStatus `json:"status"`
	PaymentStatus domain.PaymentStatus     `json:"paymentStatus"`
	CurrentStage  int                      `json:"currentStage"`
	Stages        []TrackingStage          `json:"stages"`
	ShowTracking  bool                     `json:"showTracking"`
	Order         *domain.Order            `json:"order"`
}

type TrackerService interface {
	Track(ctx context.Context, orderID string) (*Tracking, error)
}

type trackerService struct {
	store domain.OrderStore
}

func NewTrackerService(store domain.OrderStore) TrackerService {
	return &trackerService{store: store}
}

func (s *trackerService) Track(ctx context.Context, orderID string) (*Tracking, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return BuildTracking(order), nil
}

// BuildTracking maps an order onto the fulfillment timeline. An unknown
// status is treated as Placed.
func BuildTracking(order *domain.Order) *Tracking {
	current := order.Status.Stage()
	if current < 0 {
		current = 0
	}

	stages := make([]TrackingStage, len(domain.FulfillmentStages))
	for i, name := range domain.FulfillmentStages {
		state := StagePending
		switch {
		case i < current:
			state = StageCompleted
		case i == current:
			state = StageActive
		}
		stages[i] = TrackingStage{
			Name:  name,
			Date:  order.CreatedAt.AddDate(0, 0, stageOffsets[i]),
			State: state,
		}
	}

	return &Tracking{
		OrderID:       order.ID,
		Status:        domain.FulfillmentStages[current],
		PaymentStatus: order.PaymentStatus,
		CurrentStage:  current,
		Stages:        stages,
		ShowTracking:  current >= domain.FulfillmentShipped.Stage(),
		Order:         order,
	}
}
