package postgres

import (
	"context"

	"github.com/dukerupert/goodboy/internal/domain"
)

var _ domain.EventLedger = (*Store)(nil)

func (s *Store) RecordEvent(ctx context.Context, e domain.PaymentEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO payment_events (event_id, type, session_id, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.Type, e.SessionID, e.ReceivedAt)
	if err != nil {
		return false, domain.Internal(err, "event.record", "failed to record payment event")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ForgetEvent(ctx context.Context, eventID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM payment_events WHERE event_id = $1`, eventID); err != nil {
		return domain.Internal(err, "event.forget", "failed to delete payment event")
	}
	return nil
}
