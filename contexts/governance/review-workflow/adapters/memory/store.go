package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/ports"

	"github.com/google/uuid"
)

type voteKey struct {
	requestID string
	stage     entities.RequestStatus
	cycle     int
	voterID   string
}

type debounceKey struct {
	requestID        string
	notificationType string
}

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store backs every review-workflow port in memory, including the identity
// directory, for tests and single-process runs.
type Store struct {
	mu sync.RWMutex

	requests map[string]entities.Request
	votes    map[voteKey]entities.Vote
	debounce map[debounceKey]time.Time
	members  map[string]entities.Actor
	outbox   map[string]outboxRecord
	sequence []string
}

func NewStore() *Store {
	return &Store{
		requests: make(map[string]entities.Request),
		votes:    make(map[voteKey]entities.Vote),
		debounce: make(map[debounceKey]time.Time),
		members:  make(map[string]entities.Actor),
		outbox:   make(map[string]outboxRecord),
	}
}

// SetMember registers an actor with the directory.
func (s *Store) SetMember(actor entities.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	actor.ID = strings.TrimSpace(actor.ID)
	s.members[actor.ID] = actor
}

func (s *Store) CreateRequest(_ context.Context, request entities.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.RequestID]; exists {
		return domainerrors.ErrDuplicateRequest
	}
	s.requests[request.RequestID] = cloneRequest(request)
	return nil
}

func (s *Store) GetRequest(_ context.Context, requestID string) (entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok {
		return entities.Request{}, domainerrors.ErrRequestNotFound
	}
	return cloneRequest(request), nil
}

func (s *Store) CompareAndSwapStatus(_ context.Context, update ports.StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[update.RequestID]
	if !ok {
		return false, domainerrors.ErrRequestNotFound
	}
	if request.Status != update.ExpectedStatus {
		return false, nil
	}
	request.Status = update.Status
	request.Stage = update.Stage
	request.ReviewDeadline = cloneTime(update.ReviewDeadline)
	request.AutoApprovedReason = update.AutoApprovedReason
	request.ReviewCycle = update.ReviewCycle
	request.UpdatedAt = update.UpdatedAt
	s.requests[request.RequestID] = request
	return true, nil
}

func (s *Store) ListExpiredReviews(
	_ context.Context,
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	now time.Time,
	limit int,
) ([]entities.Request, error) {
	return s.filter(version, statuses, limit, func(request entities.Request) bool {
		return request.ReviewDeadline != nil && !request.ReviewDeadline.After(now)
	}, byDeadline), nil
}

func (s *Store) ListByStatus(
	_ context.Context,
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	limit int,
) ([]entities.Request, error) {
	return s.filter(version, statuses, limit, func(entities.Request) bool { return true }, byUpdatedAt), nil
}

func (s *Store) ListDeadlinesWithin(
	_ context.Context,
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	from time.Time,
	to time.Time,
	limit int,
) ([]entities.Request, error) {
	return s.filter(version, statuses, limit, func(request entities.Request) bool {
		return request.ReviewDeadline != nil &&
			request.ReviewDeadline.After(from) &&
			!request.ReviewDeadline.After(to)
	}, byDeadline), nil
}

func (s *Store) filter(
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	limit int,
	match func(entities.Request) bool,
	less func(a, b entities.Request) bool,
) []entities.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[entities.RequestStatus]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}
	items := make([]entities.Request, 0)
	for _, request := range s.requests {
		if request.WorkflowVersion != version {
			continue
		}
		if _, ok := wanted[request.Status]; !ok || !match(request) {
			continue
		}
		items = append(items, cloneRequest(request))
	}
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func byDeadline(a, b entities.Request) bool {
	if !a.ReviewDeadline.Equal(*b.ReviewDeadline) {
		return a.ReviewDeadline.Before(*b.ReviewDeadline)
	}
	return a.RequestID < b.RequestID
}

func byUpdatedAt(a, b entities.Request) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.RequestID < b.RequestID
}

func (s *Store) GetVote(
	_ context.Context,
	requestID string,
	stage entities.RequestStatus,
	cycle int,
	voterID string,
) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[voteKey{requestID: requestID, stage: stage, cycle: cycle, voterID: voterID}]
	return vote, ok, nil
}

func (s *Store) SaveVote(_ context.Context, vote entities.Vote, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey{requestID: vote.RequestID, stage: vote.Stage, cycle: vote.Cycle, voterID: vote.VoterID}
	if _, exists := s.votes[key]; exists && !overwrite {
		return domainerrors.ErrDuplicateVote
	}
	s.votes[key] = vote
	return nil
}

func (s *Store) ListVotes(
	_ context.Context,
	requestID string,
	stage entities.RequestStatus,
	cycle int,
) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Vote, 0)
	for key, vote := range s.votes {
		if key.requestID == requestID && key.stage == stage && key.cycle == cycle {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].CastAt.Before(items[j].CastAt)
		}
		return items[i].VoterID < items[j].VoterID
	})
	return items, nil
}

func (s *Store) LastSent(_ context.Context, requestID string, notificationType string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sentAt, ok := s.debounce[debounceKey{requestID: requestID, notificationType: notificationType}]
	return sentAt, ok, nil
}

func (s *Store) RecordSent(_ context.Context, record entities.DebounceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce[debounceKey{requestID: record.RequestID, notificationType: record.NotificationType}] = record.LastSentAt.UTC()
	return nil
}

func (s *Store) ResolveActor(_ context.Context, actorID string) (entities.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actor, ok := s.members[strings.TrimSpace(actorID)]
	if !ok {
		return entities.Actor{}, domainerrors.ErrUnknownActor
	}
	return actor, nil
}

func (s *Store) ListRecipients(_ context.Context, role entities.Role) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]string, 0)
	for id, actor := range s.members {
		if actor.Role == role {
			items = append(items, id)
		}
	}
	sort.Strings(items)
	return items, nil
}

func (s *Store) CountEligibleVoters(ctx context.Context, role entities.Role) (int, error) {
	items, err := s.ListRecipients(ctx, role)
	return len(items), err
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outbox[envelope.EventID]; exists {
		return nil
	}
	s.outbox[envelope.EventID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
	}
	s.sequence = append(s.sequence, envelope.EventID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.OutboxMessage, 0)
	for _, id := range s.sequence {
		record := s.outbox[id]
		if record.published {
			continue
		}
		items = append(items, record.message)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[outboxID]
	if !ok {
		return nil
	}
	record.published = true
	s.outbox[outboxID] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneRequest(request entities.Request) entities.Request {
	request.ReviewDeadline = cloneTime(request.ReviewDeadline)
	return request
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := value.UTC()
	return &copied
}
