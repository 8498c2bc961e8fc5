package ports

import (
	"context"
	"time"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	contractsv1 "hoaportal/contracts/gen/events/v1"
)

// StatusUpdate is a compare-and-swap write: it applies only while the stored
// status still equals ExpectedStatus.
type StatusUpdate struct {
	RequestID          string
	ExpectedStatus     entities.RequestStatus
	Status             entities.RequestStatus
	Stage              string
	ReviewDeadline     *time.Time
	AutoApprovedReason string
	ReviewCycle        int
	UpdatedAt          time.Time
}

type RequestRepository interface {
	CreateRequest(ctx context.Context, request entities.Request) error
	GetRequest(ctx context.Context, requestID string) (entities.Request, error)
	// CompareAndSwapStatus reports false without error when the stored status
	// no longer matches the expected prior status.
	CompareAndSwapStatus(ctx context.Context, update StatusUpdate) (bool, error)
	// ListExpiredReviews returns requests of a workflow version sitting in one
	// of statuses with review_deadline <= now, oldest deadline first.
	ListExpiredReviews(
		ctx context.Context,
		version entities.WorkflowVersion,
		statuses []entities.RequestStatus,
		now time.Time,
		limit int,
	) ([]entities.Request, error)
	// ListByStatus returns requests of a workflow version in one of statuses,
	// least recently updated first.
	ListByStatus(
		ctx context.Context,
		version entities.WorkflowVersion,
		statuses []entities.RequestStatus,
		limit int,
	) ([]entities.Request, error)
	// ListDeadlinesWithin returns requests whose review_deadline falls in
	// (from, to].
	ListDeadlinesWithin(
		ctx context.Context,
		version entities.WorkflowVersion,
		statuses []entities.RequestStatus,
		from time.Time,
		to time.Time,
		limit int,
	) ([]entities.Request, error)
}

type VoteRepository interface {
	GetVote(ctx context.Context, requestID string, stage entities.RequestStatus, cycle int, voterID string) (entities.Vote, bool, error)
	// SaveVote stores the voter's live vote. With overwrite false an existing
	// vote yields ErrDuplicateVote.
	SaveVote(ctx context.Context, vote entities.Vote, overwrite bool) error
	ListVotes(ctx context.Context, requestID string, stage entities.RequestStatus, cycle int) ([]entities.Vote, error)
}

type DebounceStore interface {
	LastSent(ctx context.Context, requestID string, notificationType string) (time.Time, bool, error)
	RecordSent(ctx context.Context, record entities.DebounceRecord) error
}

// IdentityDirectory is the identity/role collaborator.
type IdentityDirectory interface {
	ResolveActor(ctx context.Context, actorID string) (entities.Actor, error)
	ListRecipients(ctx context.Context, role entities.Role) ([]string, error)
	CountEligibleVoters(ctx context.Context, role entities.Role) (int, error)
}

// NotificationGateway renders and delivers; the workflow only decides whether
// and to whom.
type NotificationGateway interface {
	Deliver(ctx context.Context, notification entities.Notification) error
}

// Metrics receives workflow counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	TransitionApplied(version entities.WorkflowVersion, from entities.RequestStatus, to entities.RequestStatus)
	TransitionRejected(code string)
	SweepCompleted(autoApproved int, warned int, failed int)
	NotificationDispatched(notificationType entities.NotificationType, delivered int, failed int)
	NotificationSuppressed(notificationType entities.NotificationType)
}

type NoopMetrics struct{}

func (NoopMetrics) TransitionApplied(entities.WorkflowVersion, entities.RequestStatus, entities.RequestStatus) {}
func (NoopMetrics) TransitionRejected(string) {}
func (NoopMetrics) SweepCompleted(int, int, int) {}
func (NoopMetrics) NotificationDispatched(entities.NotificationType, int, int) {}
func (NoopMetrics) NotificationSuppressed(entities.NotificationType) {}

// ResolveMetrics guarantees a non-nil metrics sink.
func ResolveMetrics(metrics Metrics) Metrics {
	if metrics == nil {
		return NoopMetrics{}
	}
	return metrics
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
