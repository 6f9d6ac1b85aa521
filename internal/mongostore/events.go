package mongostore

import (
	"context"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type eventDoc struct {
	EventID    string    `bson:"_id"`
	Type       string    `bson:"type"`
	SessionID  string    `bson:"session_id,omitempty"`
	ReceivedAt time.Time `bson:"received_at"`
}

// RecordEvent relies on the _id uniqueness of the event id.
func (s *Store) RecordEvent(ctx context.Context, e domain.PaymentEvent) (bool, error) {
	_, err := s.events.InsertOne(ctx, eventDoc{
		EventID:    e.EventID,
		Type:       e.Type,
		SessionID:  e.SessionID,
		ReceivedAt: e.ReceivedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, domain.Internal(err, "mongostore.RecordEvent", "failed to record event")
	}
	return true, nil
}

func (s *Store) ForgetEvent(ctx context.Context, eventID string) error {
	if _, err := s.events.DeleteOne(ctx, bson.M{"_id": eventID}); err != nil {
		return domain.Internal(err, "mongostore.ForgetEvent", "failed to delete event")
	}
	return nil
}
