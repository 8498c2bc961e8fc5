package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateRequest(ctx context.Context, request entities.Request) error {
	row := requestModelFromEntity(request)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateRequest
		}
		return r.logError("review_repo_create_request_failed", err, "request_id", row.RequestID)
	}
	return nil
}

func (r *Repository) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	var row requestModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Request{}, domainerrors.ErrRequestNotFound
		}
		return entities.Request{}, r.logError("review_repo_get_request_failed", err,
			"request_id", strings.TrimSpace(requestID),
		)
	}
	return row.toEntity(), nil
}

// CompareAndSwapStatus issues a single conditional UPDATE; zero affected rows
// on an existing request means another writer got there first.
func (r *Repository) CompareAndSwapStatus(ctx context.Context, update ports.StatusUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&requestModel{}).
		Where("request_id = ? AND status = ?", update.RequestID, string(update.ExpectedStatus)).
		Updates(map[string]any{
			"status":               string(update.Status),
			"stage":                update.Stage,
			"review_deadline":      normalizeOptionalTime(update.ReviewDeadline),
			"auto_approved_reason": nullableString(update.AutoApprovedReason),
			"review_cycle":         update.ReviewCycle,
			"updated_at":           update.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("review_repo_cas_status_failed", result.Error,
			"request_id", update.RequestID,
			"expected_status", string(update.ExpectedStatus),
			"status", string(update.Status),
		)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&requestModel{}).
		Where("request_id = ?", update.RequestID).
		Count(&count).Error; err != nil {
		return false, r.logError("review_repo_cas_lookup_failed", err, "request_id", update.RequestID)
	}
	if count == 0 {
		return false, domainerrors.ErrRequestNotFound
	}
	return false, nil
}

func (r *Repository) ListExpiredReviews(
	ctx context.Context,
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	now time.Time,
	limit int,
) ([]entities.Request, error) {
	var rows []requestModel
	if err := r.db.WithContext(ctx).
		Where("workflow_version = ?", int(version)).
		Where("status IN ?", statusStrings(statuses)).
		Where("review_deadline IS NOT NULL AND review_deadline <= ?", now.UTC()).
		Order("review_deadline ASC, request_id ASC").
		Limit(resolveLimit(limit)).
		Find(&rows).Error; err != nil {
		return nil, r.logError("review_repo_list_expired_failed", err, "workflow_version", int(version))
	}
	return toRequestEntities(rows), nil
}

func (r *Repository) ListByStatus(
	ctx context.Context,
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	limit int,
) ([]entities.Request, error) {
	var rows []requestModel
	if err := r.db.WithContext(ctx).
		Where("workflow_version = ?", int(version)).
		Where("status IN ?", statusStrings(statuses)).
		Order("updated_at ASC, request_id ASC").
		Limit(resolveLimit(limit)).
		Find(&rows).Error; err != nil {
		return nil, r.logError("review_repo_list_by_status_failed", err, "workflow_version", int(version))
	}
	return toRequestEntities(rows), nil
}

func (r *Repository) ListDeadlinesWithin(
	ctx context.Context,
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	from time.Time,
	to time.Time,
	limit int,
) ([]entities.Request, error) {
	var rows []requestModel
	if err := r.db.WithContext(ctx).
		Where("workflow_version = ?", int(version)).
		Where("status IN ?", statusStrings(statuses)).
		Where("review_deadline > ? AND review_deadline <= ?", from.UTC(), to.UTC()).
		Order("review_deadline ASC, request_id ASC").
		Limit(resolveLimit(limit)).
		Find(&rows).Error; err != nil {
		return nil, r.logError("review_repo_list_deadlines_failed", err, "workflow_version", int(version))
	}
	return toRequestEntities(rows), nil
}

func (r *Repository) GetVote(
	ctx context.Context,
	requestID string,
	stage entities.RequestStatus,
	cycle int,
	voterID string,
) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND stage = ? AND cycle = ? AND voter_id = ?", requestID, string(stage), cycle, voterID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("review_repo_get_vote_failed", err,
			"request_id", requestID,
			"voter_id", voterID,
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote, overwrite bool) error {
	row := voteModelFromEntity(vote)
	conflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "request_id"}, {Name: "stage"}, {Name: "cycle"}, {Name: "voter_id"},
		},
		DoNothing: true,
	}
	if overwrite {
		conflict.DoNothing = false
		conflict.DoUpdates = clause.Assignments(map[string]any{
			"value":   row.Value,
			"cast_at": row.CastAt,
		})
	}
	create := r.db.WithContext(ctx).Clauses(conflict).Create(&row)
	if create.Error != nil {
		return r.logError("review_repo_save_vote_failed", create.Error,
			"request_id", row.RequestID,
			"voter_id", row.VoterID,
		)
	}
	if !overwrite && create.RowsAffected == 0 {
		return domainerrors.ErrDuplicateVote
	}
	return nil
}

func (r *Repository) ListVotes(
	ctx context.Context,
	requestID string,
	stage entities.RequestStatus,
	cycle int,
) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ? AND stage = ? AND cycle = ?", requestID, string(stage), cycle).
		Order("cast_at ASC, voter_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("review_repo_list_votes_failed", err, "request_id", requestID)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) LastSent(ctx context.Context, requestID string, notificationType string) (time.Time, bool, error) {
	var row debounceModel
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND notification_type = ?", requestID, notificationType).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, r.logError("review_repo_debounce_lookup_failed", err,
			"request_id", requestID,
			"notification_type", notificationType,
		)
	}
	return row.LastSentAt.UTC(), true, nil
}

func (r *Repository) RecordSent(ctx context.Context, record entities.DebounceRecord) error {
	row := debounceModel{
		RequestID:        record.RequestID,
		NotificationType: record.NotificationType,
		LastSentAt:       record.LastSentAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}, {Name: "notification_type"}},
		DoUpdates: clause.Assignments(map[string]any{"last_sent_at": row.LastSentAt}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("review_repo_debounce_record_failed", create.Error,
			"request_id", record.RequestID,
			"notification_type", record.NotificationType,
		)
	}
	return nil
}

func (r *Repository) ResolveActor(ctx context.Context, actorID string) (entities.Actor, error) {
	var row memberModel
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND active", strings.TrimSpace(actorID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Actor{}, domainerrors.ErrUnknownActor
		}
		return entities.Actor{}, r.logError("review_repo_resolve_actor_failed", err, "actor_id", actorID)
	}
	return entities.Actor{ID: row.ActorID, Role: entities.Role(row.Role)}, nil
}

func (r *Repository) ListRecipients(ctx context.Context, role entities.Role) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&memberModel{}).
		Where("role = ? AND active", string(role)).
		Order("actor_id ASC").
		Pluck("actor_id", &ids).Error; err != nil {
		return nil, r.logError("review_repo_list_recipients_failed", err, "role", string(role))
	}
	return ids, nil
}

func (r *Repository) CountEligibleVoters(ctx context.Context, role entities.Role) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&memberModel{}).
		Where("role = ? AND active", string(role)).
		Count(&count).Error; err != nil {
		return 0, r.logError("review_repo_count_voters_failed", err, "role", string(role))
	}
	return int(count), nil
}

// UpsertMember keeps the local role projection in step with the identity
// service.
func (r *Repository) UpsertMember(ctx context.Context, actor entities.Actor, active bool) error {
	row := memberModel{ActorID: strings.TrimSpace(actor.ID), Role: string(actor.Role), Active: active}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "active"}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("review_repo_upsert_member_failed", create.Error, "actor_id", row.ActorID)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("review_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("review_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(resolveLimit(limit)).
		Find(&rows).Error; err != nil {
		return nil, r.logError("review_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("review_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/review-workflow",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("review workflow repository operation failed", fields...)
	return err
}

type requestModel struct {
	RequestID          string     `gorm:"column:request_id;primaryKey"`
	OwnerID            string     `gorm:"column:owner_id"`
	Description        string     `gorm:"column:description"`
	Status             string     `gorm:"column:status"`
	WorkflowVersion    int        `gorm:"column:workflow_version"`
	Stage              string     `gorm:"column:stage"`
	ReviewDeadline     *time.Time `gorm:"column:review_deadline"`
	AutoApprovedReason *string    `gorm:"column:auto_approved_reason"`
	ReviewCycle        int        `gorm:"column:review_cycle"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (requestModel) TableName() string {
	return "review_requests"
}

func requestModelFromEntity(request entities.Request) requestModel {
	return requestModel{
		RequestID:          strings.TrimSpace(request.RequestID),
		OwnerID:            strings.TrimSpace(request.OwnerID),
		Description:        request.Description,
		Status:             string(request.Status),
		WorkflowVersion:    int(request.WorkflowVersion),
		Stage:              request.Stage,
		ReviewDeadline:     normalizeOptionalTime(request.ReviewDeadline),
		AutoApprovedReason: nullableString(request.AutoApprovedReason),
		ReviewCycle:        request.ReviewCycle,
		CreatedAt:          request.CreatedAt.UTC(),
		UpdatedAt:          request.UpdatedAt.UTC(),
	}
}

func (m requestModel) toEntity() entities.Request {
	request := entities.Request{
		RequestID:       m.RequestID,
		OwnerID:         m.OwnerID,
		Description:     m.Description,
		Status:          entities.RequestStatus(m.Status),
		WorkflowVersion: entities.WorkflowVersion(m.WorkflowVersion),
		Stage:           m.Stage,
		ReviewDeadline:  normalizeOptionalTime(m.ReviewDeadline),
		ReviewCycle:     m.ReviewCycle,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.AutoApprovedReason != nil {
		request.AutoApprovedReason = *m.AutoApprovedReason
	}
	return request
}

type voteModel struct {
	RequestID string    `gorm:"column:request_id;primaryKey"`
	Stage     string    `gorm:"column:stage;primaryKey"`
	Cycle     int       `gorm:"column:cycle;primaryKey"`
	VoterID   string    `gorm:"column:voter_id;primaryKey"`
	Value     string    `gorm:"column:value"`
	CastAt    time.Time `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "review_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		RequestID: strings.TrimSpace(vote.RequestID),
		Stage:     string(vote.Stage),
		Cycle:     vote.Cycle,
		VoterID:   strings.TrimSpace(vote.VoterID),
		Value:     string(vote.Value),
		CastAt:    vote.CastAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		RequestID: m.RequestID,
		Stage:     entities.RequestStatus(m.Stage),
		Cycle:     m.Cycle,
		VoterID:   m.VoterID,
		Value:     entities.VoteValue(m.Value),
		CastAt:    m.CastAt.UTC(),
	}
}

type debounceModel struct {
	RequestID        string    `gorm:"column:request_id;primaryKey"`
	NotificationType string    `gorm:"column:notification_type;primaryKey"`
	LastSentAt       time.Time `gorm:"column:last_sent_at"`
}

func (debounceModel) TableName() string {
	return "review_notification_debounce"
}

type memberModel struct {
	ActorID string `gorm:"column:actor_id;primaryKey"`
	Role    string `gorm:"column:role"`
	Active  bool   `gorm:"column:active"`
}

func (memberModel) TableName() string {
	return "review_members"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "review_workflow_outbox"
}

func toRequestEntities(rows []requestModel) []entities.Request {
	items := make([]entities.Request, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func statusStrings(statuses []entities.RequestStatus) []string {
	items := make([]string, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, string(status))
	}
	return items
}

func resolveLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.RequestRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.DebounceStore = (*Repository)(nil)
var _ ports.IdentityDirectory = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
