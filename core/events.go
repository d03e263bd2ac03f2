package core

import (
	"context"

	"github.com/google/uuid"
)

type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, Event) error { return nil }

// emit publishes a domain event. Publication failures are logged and never
// fail the calling operation.
func (s *Service) emit(ctx context.Context, eventType string, data map[string]any) {
	if s == nil || s.eventPublisher == nil {
		return
	}
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CreatedAt: s.now(),
		Data:      cloneFields(data),
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logWarn(ctx, "event publish failed", map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
			"error":      err.Error(),
		})
	}
}
