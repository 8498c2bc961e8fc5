package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hoaportal/contexts/governance/review-workflow/adapters/memory"
	"hoaportal/contexts/governance/review-workflow/application/commands"
	"hoaportal/contexts/governance/review-workflow/application/notifications"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/domain/services"

	"github.com/google/go-cmp/cmp"
)

type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time { return c.now }

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

func (d *recordingDispatcher) count(notificationType entities.NotificationType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, event := range d.events {
		if event.Type == notificationType {
			total++
		}
	}
	return total
}

type schedulerFixture struct {
	store     *memory.Store
	clock     *movableClock
	events    *recordingDispatcher
	scheduler DeadlineScheduler
}

func newSchedulerFixture(t *testing.T) schedulerFixture {
	t.Helper()
	store := memory.NewStore()
	clock := &movableClock{now: time.Date(2026, 6, 10, 3, 0, 0, 0, time.UTC)}
	events := &recordingDispatcher{}
	validator := services.DefaultValidator()
	return schedulerFixture{
		store:  store,
		clock:  clock,
		events: events,
		scheduler: DeadlineScheduler{
			Requests:  store,
			Validator: validator,
			Transitions: commands.TransitionUseCase{
				Requests:   store,
				Validator:  validator,
				Directory:  store,
				Dispatcher: events,
				Clock:      clock,
			},
			Dispatcher: events,
			Debounce:   store,
			Clock:      clock,
		},
	}
}

func (f schedulerFixture) seedReview(
	t *testing.T,
	id string,
	version entities.WorkflowVersion,
	status entities.RequestStatus,
	deadline time.Time,
) entities.Request {
	t.Helper()
	request := entities.Request{
		RequestID:       id,
		OwnerID:         "owner-1",
		Description:     "repaint garage door",
		Status:          status,
		WorkflowVersion: version,
		Stage:           entities.StageFor(version, status),
		ReviewDeadline:  &deadline,
		ReviewCycle:     1,
		CreatedAt:       f.clock.now.Add(-40 * 24 * time.Hour),
		UpdatedAt:       f.clock.now.Add(-30 * 24 * time.Hour),
	}
	if err := f.store.CreateRequest(context.Background(), request); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return request
}

func (f schedulerFixture) request(t *testing.T, id string) entities.Request {
	t.Helper()
	request, err := f.store.GetRequest(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return request
}

func TestSweepAutoApprovesExpiredLegacyReview(t *testing.T) {
	f := newSchedulerFixture(t)
	f.seedReview(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusInReview, f.clock.now.Add(-time.Minute))
	f.seedReview(t, "req-2", entities.WorkflowVersionLegacy, entities.RequestStatusInReview, f.clock.now.Add(20*24*time.Hour))

	report, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report.AutoApproved != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	approved := f.request(t, "req-1")
	if approved.Status != entities.RequestStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.AutoApprovedReason != "review_deadline_elapsed:in_review" {
		t.Fatalf("unexpected reason %q", approved.AutoApprovedReason)
	}
	if approved.ReviewDeadline != nil {
		t.Fatalf("expected deadline cleared, got %v", approved.ReviewDeadline)
	}
	if got := f.request(t, "req-2").Status; got != entities.RequestStatusInReview {
		t.Fatalf("expected open review untouched, got %s", got)
	}
}

func TestSweepIsIdempotentAcrossRuns(t *testing.T) {
	f := newSchedulerFixture(t)
	f.seedReview(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageAReview, f.clock.now.Add(-time.Hour))

	first, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if first.AutoApproved != 1 {
		t.Fatalf("expected one auto approval, got %+v", first)
	}
	advanced := f.request(t, "req-1")
	if advanced.Status != entities.RequestStatusStageBReview {
		t.Fatalf("expected auto-approved stage A to advance to stage B, got %s", advanced.Status)
	}
	if want := f.clock.now.Add(commands.DefaultReviewPeriod); !advanced.ReviewDeadline.Equal(want) {
		t.Fatalf("expected stage B deadline %s, got %s", want, advanced.ReviewDeadline)
	}

	second, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if diff := cmp.Diff(SweepReport{}, second); diff != "" {
		t.Fatalf("expected an empty second sweep (-want +got):\n%s", diff)
	}
	if got := f.events.count(entities.NotificationAutoApproved); got != 1 {
		t.Fatalf("expected exactly one auto_approved notice, got %d", got)
	}
	if got := f.events.count(entities.NotificationStageOpened); got != 1 {
		t.Fatalf("expected one stage_opened notice, got %d", got)
	}
}

type staleLister struct {
	*memory.Store
	snapshot []entities.Request
}

func (s staleLister) ListExpiredReviews(
	_ context.Context,
	version entities.WorkflowVersion,
	_ []entities.RequestStatus,
	_ time.Time,
	_ int,
) ([]entities.Request, error) {
	items := make([]entities.Request, 0, len(s.snapshot))
	for _, request := range s.snapshot {
		if request.WorkflowVersion == version {
			items = append(items, request)
		}
	}
	return items, nil
}

func TestSweepLosesRaceToVoteResolution(t *testing.T) {
	f := newSchedulerFixture(t)
	snapshot := f.seedReview(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusInReview, f.clock.now.Add(-time.Minute))

	// A reviewer majority rejects the request after the sweep listed it.
	reviewer := entities.Actor{ID: "arc-1", Role: entities.RoleReviewerStageA}
	if _, err := f.scheduler.Transitions.Apply(context.Background(), reviewer, snapshot, entities.RequestStatusRejected, commands.TransitionOptions{}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	f.scheduler.Requests = staleLister{Store: f.store, snapshot: []entities.Request{snapshot}}

	report, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report.AutoApproved != 0 || report.AlreadyResolved != 1 {
		t.Fatalf("expected the sweep to yield, got %+v", report)
	}
	if got := f.request(t, "req-1").Status; got != entities.RequestStatusRejected {
		t.Fatalf("expected rejection to stand, got %s", got)
	}
	if got := f.events.count(entities.NotificationAutoApproved); got != 0 {
		t.Fatalf("expected no auto_approved notice, got %d", got)
	}
}

func TestSweepAdvancesStalledStageAApproval(t *testing.T) {
	f := newSchedulerFixture(t)
	request := entities.Request{
		RequestID:       "req-1",
		OwnerID:         "owner-1",
		Description:     "new mailbox",
		Status:          entities.RequestStatusStageAApproved,
		WorkflowVersion: entities.WorkflowVersionMultiStage,
		Stage:           string(entities.RequestStatusStageAApproved),
		ReviewCycle:     1,
		CreatedAt:       f.clock.now.Add(-time.Hour),
		UpdatedAt:       f.clock.now.Add(-time.Hour),
	}
	if err := f.store.CreateRequest(context.Background(), request); err != nil {
		t.Fatalf("seed: %v", err)
	}

	report, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report.Advanced != 1 {
		t.Fatalf("expected one advanced request, got %+v", report)
	}
	advanced := f.request(t, "req-1")
	if advanced.Status != entities.RequestStatusStageBReview || advanced.ReviewCycle != 2 {
		t.Fatalf("expected stage_b_review in cycle 2, got %s cycle %d", advanced.Status, advanced.ReviewCycle)
	}
}

func TestSweepSendsEachWarningOnce(t *testing.T) {
	f := newSchedulerFixture(t)
	f.seedReview(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageBReview, f.clock.now.Add(5*24*time.Hour))

	first, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if first.Warned != 1 {
		t.Fatalf("expected the 7 day warning, got %+v", first)
	}
	f.clock.now = f.clock.now.Add(time.Hour)
	second, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if second.Warned != 0 {
		t.Fatalf("expected the 7 day warning not repeated, got %+v", second)
	}

	f.clock.now = f.clock.now.Add(3 * 24 * time.Hour)
	third, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if third.Warned != 1 {
		t.Fatalf("expected the 3 day warning, got %+v", third)
	}
	if got := f.events.count(entities.NotificationDeadlineWarning); got != 2 {
		t.Fatalf("expected two warnings in total, got %d", got)
	}

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	leads := []string{}
	for _, event := range f.events.events {
		if event.Type == entities.NotificationDeadlineWarning {
			leads = append(leads, event.Context["lead_time"])
		}
	}
	if diff := cmp.Diff([]string{"168h", "72h"}, leads); diff != "" {
		t.Fatalf("unexpected warning leads (-want +got):\n%s", diff)
	}
}

func TestSweepWarnsAgainInNewReviewCycle(t *testing.T) {
	f := newSchedulerFixture(t)
	request := f.seedReview(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusInReview, f.clock.now.Add(2*24*time.Hour))

	if report, _ := f.scheduler.RunOnce(context.Background()); report.Warned != 1 {
		t.Fatalf("expected first warning, got %+v", report)
	}

	// Returned and reopened: a new deadline in a new cycle.
	reviewer := entities.Actor{ID: "arc-1", Role: entities.RoleReviewerStageA}
	returned, err := f.scheduler.Transitions.Apply(context.Background(), reviewer, request, entities.RequestStatusPending, commands.TransitionOptions{})
	if err != nil || !returned.Applied {
		t.Fatalf("return failed: %+v err=%v", returned, err)
	}
	f.clock.now = f.clock.now.Add(12 * time.Hour)
	reopened, err := f.scheduler.Transitions.Apply(context.Background(), reviewer, returned.Request, entities.RequestStatusInReview, commands.TransitionOptions{})
	if err != nil || !reopened.Applied {
		t.Fatalf("reopen failed: %+v err=%v", reopened, err)
	}
	f.clock.now = reopened.Request.ReviewDeadline.Add(-2 * 24 * time.Hour)

	report, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report.Warned != 1 {
		t.Fatalf("expected a warning for the new cycle, got %+v", report)
	}
}

type failingDeadlineLister struct {
	*memory.Store
	version entities.WorkflowVersion
	err     error
}

func (s failingDeadlineLister) ListDeadlinesWithin(
	ctx context.Context,
	version entities.WorkflowVersion,
	statuses []entities.RequestStatus,
	from time.Time,
	to time.Time,
	limit int,
) ([]entities.Request, error) {
	if version == s.version {
		return nil, s.err
	}
	return s.Store.ListDeadlinesWithin(ctx, version, statuses, from, to, limit)
}

func TestSweepContinuesPastListingFailure(t *testing.T) {
	f := newSchedulerFixture(t)
	storeDown := errors.New("store unreachable")
	f.scheduler.Requests = failingDeadlineLister{Store: f.store, version: entities.WorkflowVersionLegacy, err: storeDown}
	f.seedReview(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusInReview, f.clock.now.Add(-time.Minute))
	f.seedReview(t, "req-2", entities.WorkflowVersionMultiStage, entities.RequestStatusStageAReview, f.clock.now.Add(-time.Minute))
	f.seedReview(t, "req-3", entities.WorkflowVersionMultiStage, entities.RequestStatusStageBReview, f.clock.now.Add(2*24*time.Hour))

	report, err := f.scheduler.RunOnce(context.Background())
	if !errors.Is(err, storeDown) {
		t.Fatalf("expected listing error reported, got %v", err)
	}
	// One failure per lead-time window of the legacy workflow.
	if report.Failed != 2 || report.AutoApproved != 2 || report.Warned != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := f.request(t, "req-1").Status; got != entities.RequestStatusApproved {
		t.Fatalf("expected legacy request auto-approved, got %s", got)
	}
	if got := f.request(t, "req-2").Status; got != entities.RequestStatusStageBReview {
		t.Fatalf("expected multi-stage request advanced to stage B, got %s", got)
	}
}

type fixedResultDispatcher struct {
	mu     sync.Mutex
	result notifications.DispatchResult
	calls  int
}

func (d *fixedResultDispatcher) Dispatch(_ context.Context, event notifications.WorkflowEvent) notifications.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	result := d.result
	result.Type = event.Type
	return result
}

func TestSweepRecordsUnaddressedWarningOnce(t *testing.T) {
	f := newSchedulerFixture(t)
	dispatcher := &fixedResultDispatcher{}
	f.scheduler.Dispatcher = dispatcher
	f.seedReview(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageBReview, f.clock.now.Add(5*24*time.Hour))

	first, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if first.NoRecipients != 1 || first.Failed != 0 || first.Warned != 0 {
		t.Fatalf("unexpected first report %+v", first)
	}
	second, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if second.NoRecipients != 0 || second.Failed != 0 {
		t.Fatalf("expected the unaddressed warning handled, got %+v", second)
	}
	if dispatcher.calls != 1 {
		t.Fatalf("expected one dispatch, got %d", dispatcher.calls)
	}
}

func TestSweepRetriesUndeliveredWarning(t *testing.T) {
	f := newSchedulerFixture(t)
	dispatcher := &fixedResultDispatcher{result: notifications.DispatchResult{Recipients: 2, Failed: 2}}
	f.scheduler.Dispatcher = dispatcher
	f.seedReview(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageBReview, f.clock.now.Add(5*24*time.Hour))

	for run := 1; run <= 2; run++ {
		report, err := f.scheduler.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("sweep %d failed: %v", run, err)
		}
		if report.Failed != 1 || report.Warned != 0 {
			t.Fatalf("sweep %d: unexpected report %+v", run, report)
		}
	}
	if dispatcher.calls != 2 {
		t.Fatalf("expected delivery retried, got %d dispatches", dispatcher.calls)
	}
}

func TestSweepDisabledDoesNothing(t *testing.T) {
	f := newSchedulerFixture(t)
	f.scheduler.Disabled = true
	f.seedReview(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusInReview, f.clock.now.Add(-time.Hour))

	report, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report != (SweepReport{}) {
		t.Fatalf("expected empty report, got %+v", report)
	}
	if got := f.request(t, "req-1").Status; got != entities.RequestStatusInReview {
		t.Fatalf("expected request untouched, got %s", got)
	}
}

func TestLeadLabel(t *testing.T) {
	cases := map[time.Duration]string{
		7 * 24 * time.Hour: "168h",
		36 * time.Hour:     "36h",
		90 * time.Minute:   "1h30m",
		45 * time.Second:   "45s",
	}
	for lead, want := range cases {
		if got := leadLabel(lead); got != want {
			t.Fatalf("leadLabel(%s) = %q, want %q", lead, got, want)
		}
	}
}
