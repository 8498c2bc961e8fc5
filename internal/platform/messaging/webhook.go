package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	contractsv1 "hoaportal/contracts/gen/events/v1"

	"golang.org/x/time/rate"
)

var ErrDeliveryRejected = errors.New("delivery service rejected event")

// WebhookPublisher POSTs each envelope to the delivery service. The relay
// decides retries; a failed publish leaves the outbox row pending.
type WebhookPublisher struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewWebhookPublisher(
	endpoint string,
	perSecond float64,
	timeout time.Duration,
	logger *slog.Logger,
) (*WebhookPublisher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("delivery webhook url is required")
	}
	if perSecond <= 0 {
		perSecond = 20
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookPublisher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
		logger:   logger,
	}, nil
}

func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", topic)
	req.Header.Set("X-Event-ID", event.EventID)
	// The delivery service dedupes on this key.
	req.Header.Set("Idempotency-Key", event.EventID)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("webhook publish failed",
			"event", "webhook_publish_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn("webhook publish rejected",
			"event", "webhook_publish_rejected",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"status_code", resp.StatusCode,
		)
		return fmt.Errorf("%w: status %d", ErrDeliveryRejected, resp.StatusCode)
	}
	p.logger.Debug("webhook event published",
		"event", "webhook_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"status_code", resp.StatusCode,
	)
	return nil
}
