package jobs

import (
	"context"

	"github.com/dukerupert/goodboy/internal/domain"
)

// Job type constants for email jobs
const (
	JobTypeOrderConfirmation = "email:order_confirmation"
)

// OrderConfirmationPayload carries the order snapshot so the worker does not
// need store access.
type OrderConfirmationPayload struct {
	Order domain.Order `json:"order"`
}

// EnqueueOrderConfirmation builds and enqueues an order confirmation job.
func EnqueueOrderConfirmation(ctx context.Context, q Enqueuer, order *domain.Order) error {
	job, err := NewJob(JobTypeOrderConfirmation, OrderConfirmationPayload{Order: *order})
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, job)
}
