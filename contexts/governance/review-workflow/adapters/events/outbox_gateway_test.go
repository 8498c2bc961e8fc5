package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/ports"

	"github.com/google/go-cmp/cmp"
)

type captureOutbox struct {
	envelopes []ports.EventEnvelope
}

func (c *captureOutbox) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	c.envelopes = append(c.envelopes, envelope)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type staticID struct {
	id  string
	err error
}

func (s staticID) NewID(context.Context) (string, error) { return s.id, s.err }

func TestDeliverAppendsNotificationEnvelope(t *testing.T) {
	outbox := &captureOutbox{}
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	gateway := OutboxGateway{Outbox: outbox, Clock: fixedClock{now: at}, IDGen: staticID{id: "evt-1"}}

	err := gateway.Deliver(context.Background(), entities.Notification{
		Recipient: "arc-1",
		Type:      entities.NotificationStageOpened,
		RequestID: "req-9",
		Stage:     entities.RequestStatusStageAReview,
		Context:   map[string]string{"deadline": "2026-04-01"},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(outbox.envelopes) != 1 {
		t.Fatalf("expected one envelope, got %d", len(outbox.envelopes))
	}
	envelope := outbox.envelopes[0]
	if err := envelope.Validate(); err != nil {
		t.Fatalf("envelope invalid: %v", err)
	}
	if envelope.EventType != NotificationRequestedEvent || envelope.PartitionKey != "req-9" {
		t.Fatalf("unexpected routing fields: %+v", envelope)
	}
	if !envelope.OccurredAt.Equal(at) || envelope.OccurredAt.Location() != time.UTC {
		t.Fatalf("expected UTC occurred_at, got %s", envelope.OccurredAt)
	}

	var got notificationPayload
	if err := json.Unmarshal(envelope.Data, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	want := notificationPayload{
		Recipient: "arc-1",
		Type:      "stage_opened",
		RequestID: "req-9",
		Stage:     "stage_a_review",
		Context:   map[string]string{"deadline": "2026-04-01"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliverPropagatesIDFailure(t *testing.T) {
	outbox := &captureOutbox{}
	boom := errors.New("entropy exhausted")
	gateway := OutboxGateway{Outbox: outbox, IDGen: staticID{err: boom}}

	err := gateway.Deliver(context.Background(), entities.Notification{Recipient: "owner-1", RequestID: "req-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected id error, got %v", err)
	}
	if len(outbox.envelopes) != 0 {
		t.Fatalf("expected nothing appended")
	}
}
