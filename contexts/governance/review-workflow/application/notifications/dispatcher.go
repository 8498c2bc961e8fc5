package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	application "hoaportal/contexts/governance/review-workflow/application"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/domain/services"
	"hoaportal/contexts/governance/review-workflow/ports"
)

const DefaultVoteCastCooldown = 30 * time.Minute

// WorkflowEvent is emitted after a successful transition or vote. Stage
// defaults to the request's current status.
type WorkflowEvent struct {
	Type    entities.NotificationType
	Request entities.Request
	Stage   entities.RequestStatus
	Context map[string]string
}

type DispatchResult struct {
	Type       entities.NotificationType
	Recipients int
	Delivered  int
	Failed     int
	Suppressed bool
}

// Dispatcher decides whether and to whom a workflow event is announced and
// hands each delivery to the gateway. Dispatch is best-effort: failures are
// logged and counted, never returned.
type Dispatcher struct {
	Directory        ports.IdentityDirectory
	Gateway          ports.NotificationGateway
	Debounce         ports.DebounceStore
	Validator        *services.Validator
	Metrics          ports.Metrics
	Clock            ports.Clock
	VoteCastCooldown time.Duration
	Logger           *slog.Logger
}

func (d Dispatcher) Dispatch(ctx context.Context, event WorkflowEvent) DispatchResult {
	logger := application.ResolveLogger(d.Logger)
	metrics := ports.ResolveMetrics(d.Metrics)
	result := DispatchResult{Type: event.Type}
	if event.Stage == "" {
		event.Stage = event.Request.Status
	}
	now := d.now()

	debounceKey := ""
	if event.Type == entities.NotificationVoteCast && d.Debounce != nil {
		debounceKey = string(entities.NotificationVoteCast) + ":" + string(event.Stage)
		lastSent, found, err := d.Debounce.LastSent(ctx, event.Request.RequestID, debounceKey)
		if err != nil {
			logger.Warn("notification debounce lookup failed",
				"event", "review_notification_debounce_lookup_failed",
				"module", "governance/review-workflow",
				"layer", "application",
				"request_id", event.Request.RequestID,
				"notification_type", debounceKey,
				"error", err.Error(),
			)
		} else if found && now.Sub(lastSent) < d.resolveCooldown() {
			logger.Debug("notification suppressed by debounce",
				"event", "review_notification_suppressed",
				"module", "governance/review-workflow",
				"layer", "application",
				"request_id", event.Request.RequestID,
				"notification_type", debounceKey,
				"last_sent_at", lastSent,
			)
			metrics.NotificationSuppressed(event.Type)
			result.Suppressed = true
			return result
		}
	}

	recipients, err := d.recipients(ctx, event)
	if err != nil {
		logger.Error("notification recipient lookup failed",
			"event", "review_notification_recipients_failed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", event.Request.RequestID,
			"notification_type", string(event.Type),
			"error", err.Error(),
		)
		result.Failed++
		metrics.NotificationDispatched(event.Type, 0, result.Failed)
		return result
	}
	result.Recipients = len(recipients)
	if len(recipients) == 0 {
		logger.Warn("notification has no recipients",
			"event", "review_notification_no_recipients",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", event.Request.RequestID,
			"notification_type", string(event.Type),
		)
		return result
	}

	payload := notificationContext(event)
	for _, recipient := range recipients {
		err := d.Gateway.Deliver(ctx, entities.Notification{
			Recipient: recipient,
			Type:      event.Type,
			RequestID: event.Request.RequestID,
			Stage:     event.Stage,
			Context:   payload,
		})
		if err != nil {
			result.Failed++
			logger.Error("notification delivery failed",
				"event", "review_notification_delivery_failed",
				"module", "governance/review-workflow",
				"layer", "application",
				"request_id", event.Request.RequestID,
				"notification_type", string(event.Type),
				"recipient", recipient,
				"error", err.Error(),
			)
			continue
		}
		result.Delivered++
	}

	if debounceKey != "" && result.Delivered > 0 {
		if err := d.Debounce.RecordSent(ctx, entities.DebounceRecord{
			RequestID:        event.Request.RequestID,
			NotificationType: debounceKey,
			LastSentAt:       now,
		}); err != nil {
			logger.Warn("notification debounce record failed",
				"event", "review_notification_debounce_record_failed",
				"module", "governance/review-workflow",
				"layer", "application",
				"request_id", event.Request.RequestID,
				"notification_type", debounceKey,
				"error", err.Error(),
			)
		}
	}

	metrics.NotificationDispatched(event.Type, result.Delivered, result.Failed)
	logger.Info("notification dispatched",
		"event", "review_notification_dispatched",
		"module", "governance/review-workflow",
		"layer", "application",
		"request_id", event.Request.RequestID,
		"notification_type", string(event.Type),
		"stage", string(event.Stage),
		"recipient_count", result.Recipients,
		"delivered_count", result.Delivered,
		"failed_count", result.Failed,
	)
	return result
}

func (d Dispatcher) recipients(ctx context.Context, event WorkflowEvent) ([]string, error) {
	includeOwner := false
	var roles []entities.Role
	switch event.Type {
	case entities.NotificationSubmitted:
		roles = []entities.Role{entities.RoleReviewerStageA}
	case entities.NotificationStageOpened, entities.NotificationVoteCast, entities.NotificationDeadlineWarning:
		roles = []entities.Role{d.voterRole(event)}
	case entities.NotificationDecisionReached:
		includeOwner = true
	case entities.NotificationAutoApproved:
		includeOwner = true
		roles = []entities.Role{d.voterRole(event)}
	}

	seen := make(map[string]struct{})
	items := make([]string, 0)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		items = append(items, id)
	}
	if includeOwner {
		add(event.Request.OwnerID)
	}
	for _, role := range roles {
		members, err := d.Directory.ListRecipients(ctx, role)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			add(member)
		}
	}
	return items, nil
}

func (d Dispatcher) voterRole(event WorkflowEvent) entities.Role {
	if d.Validator != nil {
		if workflow, ok := d.Validator.Workflow(event.Request.WorkflowVersion); ok {
			if stage, ok := workflow.Stage(event.Stage); ok {
				return stage.VoterRole
			}
		}
	}
	return entities.RoleReviewerStageA
}

func notificationContext(event WorkflowEvent) map[string]string {
	payload := map[string]string{
		"request_id":       event.Request.RequestID,
		"status":           string(event.Request.Status),
		"workflow_version": strconv.Itoa(int(event.Request.WorkflowVersion)),
		"stage":            string(event.Stage),
	}
	if event.Request.ReviewDeadline != nil {
		payload["review_deadline"] = event.Request.ReviewDeadline.UTC().Format(time.RFC3339)
	}
	if event.Request.AutoApprovedReason != "" {
		payload["auto_approved_reason"] = event.Request.AutoApprovedReason
	}
	for key, value := range event.Context {
		payload[key] = value
	}
	return payload
}

func (d Dispatcher) resolveCooldown() time.Duration {
	if d.VoteCastCooldown <= 0 {
		return DefaultVoteCastCooldown
	}
	return d.VoteCastCooldown
}

func (d Dispatcher) now() time.Time {
	if d.Clock != nil {
		return d.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
