package events

import (
	"context"
	"encoding/json"
	"time"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/ports"
)

const NotificationRequestedEvent = "notification.requested"

// OutboxGateway satisfies the delivery port by persisting one
// notification.requested envelope per recipient; the outbox relay hands them
// to the rendering/transport service.
type OutboxGateway struct {
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
}

type notificationPayload struct {
	Recipient string            `json:"recipient"`
	Type      string            `json:"type"`
	RequestID string            `json:"request_id"`
	Stage     string            `json:"stage,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

func (g OutboxGateway) Deliver(ctx context.Context, notification entities.Notification) error {
	eventID, err := g.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newNotificationEnvelope(eventID, g.now(), notification)
	if err != nil {
		return err
	}
	return g.Outbox.AppendOutbox(ctx, envelope)
}

func newNotificationEnvelope(
	eventID string,
	occurredAt time.Time,
	notification entities.Notification,
) (ports.EventEnvelope, error) {
	// Partitioned by request so one request's notices stay ordered.
	payload, err := json.Marshal(notificationPayload{
		Recipient: notification.Recipient,
		Type:      string(notification.Type),
		RequestID: notification.RequestID,
		Stage:     string(notification.Stage),
		Context:   notification.Context,
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        NotificationRequestedEvent,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "review-workflow",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "request_id",
		PartitionKey:     notification.RequestID,
		Data:             payload,
	}, nil
}

func (g OutboxGateway) now() time.Time {
	if g.Clock != nil {
		return g.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
