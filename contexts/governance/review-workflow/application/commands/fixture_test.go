package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"hoaportal/contexts/governance/review-workflow/adapters/memory"
	"hoaportal/contexts/governance/review-workflow/application/notifications"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/domain/services"
)

var fixtureNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notifications.WorkflowEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notifications.WorkflowEvent) notifications.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return notifications.DispatchResult{Type: event.Type, Recipients: 1, Delivered: 1}
}

func (d *recordingDispatcher) types() []entities.NotificationType {
	d.mu.Lock()
	defer d.mu.Unlock()
	items := make([]entities.NotificationType, 0, len(d.events))
	for _, event := range d.events {
		items = append(items, event.Type)
	}
	return items
}

type fixture struct {
	store       *memory.Store
	events      *recordingDispatcher
	validator   *services.Validator
	transitions TransitionUseCase
	votes       CastVoteUseCase
	create      CreateRequestUseCase
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	for _, actor := range []entities.Actor{
		{ID: "owner-1", Role: entities.RoleOwner},
		{ID: "owner-2", Role: entities.RoleOwner},
		{ID: "arc-1", Role: entities.RoleReviewerStageA},
		{ID: "arc-2", Role: entities.RoleReviewerStageA},
		{ID: "arc-3", Role: entities.RoleReviewerStageA},
		{ID: "board-1", Role: entities.RoleReviewerStageB},
		{ID: "board-2", Role: entities.RoleReviewerStageB},
		{ID: "board-3", Role: entities.RoleReviewerStageB},
	} {
		store.SetMember(actor)
	}
	events := &recordingDispatcher{}
	validator := services.DefaultValidator()
	clock := fixedClock{now: fixtureNow}
	transitions := TransitionUseCase{
		Requests:   store,
		Votes:      store,
		Validator:  validator,
		Directory:  store,
		Dispatcher: events,
		Clock:      clock,
	}
	return fixture{
		store:       store,
		events:      events,
		validator:   validator,
		transitions: transitions,
		votes: CastVoteUseCase{
			Requests:    store,
			Votes:       store,
			Directory:   store,
			Validator:   validator,
			Transitions: transitions,
			Dispatcher:  events,
			Clock:       clock,
		},
		create: CreateRequestUseCase{
			Requests:   store,
			Validator:  validator,
			Directory:  store,
			Dispatcher: events,
			Clock:      clock,
			IDGen:      store,
		},
	}
}

// seed stores a request directly in status. Review statuses get cycle 1 and
// a deadline a week out.
func (f fixture) seed(t *testing.T, id string, version entities.WorkflowVersion, status entities.RequestStatus) entities.Request {
	t.Helper()
	request := entities.Request{
		RequestID:       id,
		OwnerID:         "owner-1",
		Description:     "replace front fence",
		Status:          status,
		WorkflowVersion: version,
		Stage:           entities.StageFor(version, status),
		CreatedAt:       fixtureNow.Add(-48 * time.Hour),
		UpdatedAt:       fixtureNow.Add(-48 * time.Hour),
	}
	if workflow, _ := f.validator.Workflow(version); workflow.IsReviewStatus(status) {
		deadline := fixtureNow.Add(7 * 24 * time.Hour)
		request.ReviewDeadline = &deadline
		request.ReviewCycle = 1
	}
	if err := f.store.CreateRequest(context.Background(), request); err != nil {
		t.Fatalf("seed request %s: %v", id, err)
	}
	return request
}

func (f fixture) status(t *testing.T, id string) entities.RequestStatus {
	t.Helper()
	request, err := f.store.GetRequest(context.Background(), id)
	if err != nil {
		t.Fatalf("get request %s: %v", id, err)
	}
	return request.Status
}
