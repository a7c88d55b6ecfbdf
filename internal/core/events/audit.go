package events

import (
	"context"
	"log/slog"
)

// RegisterAuditLog writes one log line for every workflow event published on bus.
func RegisterAuditLog(bus *EventBus, logger *slog.Logger) {
	audit := logger.With("component", "audit")
	for _, eventType := range WorkflowEventTypes {
		bus.Subscribe(eventType, func(ctx context.Context, event Event) error {
			audit.Info("workflow event",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"occurred_at", event.OccurredAt(),
				"payload", event.Payload())
			return nil
		})
	}
}
