package storage

import (
	"context"
	"encoding/json"

	"slate-api/domain"
)

// PublishEvents sends board change events to the events queue for downstream
// fan-out. Delivery to clients is handled outside this service.
func (s *Storage) PublishEvents(ctx context.Context, userID string, events []domain.BoardEvent) error {
	for _, ev := range events {
		env := domain.EventEnvelope{UserID: userID, Event: ev}
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if _, err := s.eventQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
	}
	return nil
}
