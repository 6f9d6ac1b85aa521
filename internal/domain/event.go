package domain

import (
	"context"
	"time"
)

// PaymentEvent is a payment provider webhook delivery that has been accepted.
type PaymentEvent struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	SessionID  string    `json:"sessionId,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EventLedger remembers processed payment events so redeliveries are skipped.
type EventLedger interface {
	// RecordEvent stores the event if its id is new. It returns false when
	// the id was already recorded.
	RecordEvent(ctx context.Context, e PaymentEvent) (bool, error)

	// ForgetEvent removes an event so a later redelivery is processed again.
	ForgetEvent(ctx context.Context, eventID string) error
}
