package filestore

import (
	"context"
	"slices"

	"github.com/dukerupert/goodboy/internal/domain"
)

func (s *Store) RecordEvent(ctx context.Context, e domain.PaymentEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.events.load()
	if err != nil {
		return false, domain.Internal(err, "filestore.RecordEvent", "failed to load events")
	}
	if slices.ContainsFunc(events, func(x domain.PaymentEvent) bool { return x.EventID == e.EventID }) {
		return false, nil
	}

	events = append(events, e)
	if err := s.events.save(events); err != nil {
		return false, domain.Internal(err, "filestore.RecordEvent", "failed to save events")
	}
	return true, nil
}

func (s *Store) ForgetEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.events.load()
	if err != nil {
		return domain.Internal(err, "filestore.ForgetEvent", "failed to load events")
	}
	i := slices.IndexFunc(events, func(x domain.PaymentEvent) bool { return x.EventID == eventID })
	if i < 0 {
		return nil
	}
	if err := s.events.save(slices.Delete(events, i, i+1)); err != nil {
		return domain.Internal(err, "filestore.ForgetEvent", "failed to save events")
	}
	return nil
}
