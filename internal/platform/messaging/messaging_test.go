package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	contractsv1 "hoaportal/contracts/gen/events/v1"
)

func testEnvelope(id string) contractsv1.Envelope {
	return contractsv1.Envelope{
		EventID:          id,
		EventType:        "notification.requested",
		OccurredAt:       time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		SourceService:    "review-workflow",
		TraceID:          id,
		SchemaVersion:    1,
		PartitionKeyPath: "request_id",
		PartitionKey:     "req-1",
		Data:             json.RawMessage(`{"recipient":"arc-1"}`),
	}
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan contractsv1.Envelope, 1)
	if err := bus.Subscribe(ctx, "notification.requested", "test", func(_ context.Context, event contractsv1.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Publish(ctx, "notification.requested", testEnvelope("evt-1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case event := <-received:
		if event.EventID != "evt-1" {
			t.Fatalf("unexpected event %s", event.EventID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestBusRejectsIncompleteEnvelope(t *testing.T) {
	bus := NewBus(nil)
	envelope := testEnvelope("evt-1")
	envelope.Data = nil
	if err := bus.Publish(context.Background(), "notification.requested", envelope); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestWebhookPublisherPostsEnvelope(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
		body    []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		headers = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	publisher, err := NewWebhookPublisher(server.URL, 100, time.Second, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := publisher.Publish(context.Background(), "notification.requested", testEnvelope("evt-7")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if headers.Get("Idempotency-Key") != "evt-7" || headers.Get("X-Event-Topic") != "notification.requested" {
		t.Fatalf("unexpected headers %v", headers)
	}
	var decoded contractsv1.Envelope
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.PartitionKey != "req-1" {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestWebhookPublisherReportsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	publisher, err := NewWebhookPublisher(server.URL, 100, time.Second, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	err = publisher.Publish(context.Background(), "notification.requested", testEnvelope("evt-8"))
	if !errors.Is(err, ErrDeliveryRejected) {
		t.Fatalf("expected ErrDeliveryRejected, got %v", err)
	}
}

func TestNewWebhookPublisherRequiresURL(t *testing.T) {
	if _, err := NewWebhookPublisher(" ", 1, time.Second, nil); err == nil {
		t.Fatalf("expected missing url error")
	}
}
