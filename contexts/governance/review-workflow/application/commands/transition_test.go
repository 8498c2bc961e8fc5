package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/domain/services"

	"github.com/google/go-cmp/cmp"
)

func TestTransitionOpensStageWithFreshDeadline(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusSubmitted)

	result, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "arc-1",
		ToStatus:  entities.RequestStatusStageAReview,
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected transition applied, got %+v", result.Decision)
	}
	if result.Request.ReviewCycle != 1 {
		t.Fatalf("expected review cycle 1, got %d", result.Request.ReviewCycle)
	}
	wantDeadline := fixtureNow.Add(DefaultReviewPeriod)
	if result.Request.ReviewDeadline == nil || !result.Request.ReviewDeadline.Equal(wantDeadline) {
		t.Fatalf("expected deadline %s, got %v", wantDeadline, result.Request.ReviewDeadline)
	}
	if diff := cmp.Diff([]entities.NotificationType{entities.NotificationStageOpened}, f.events.types()); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestTransitionRejectionIsReportedNotReturned(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageAReview)

	result, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "owner-1",
		ToStatus:  entities.RequestStatusStageAApproved,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Applied || result.Decision.Code != services.DecisionRoleNotPermitted {
		t.Fatalf("expected role_not_permitted, got %+v", result.Decision)
	}
	if got := f.status(t, "req-1"); got != entities.RequestStatusStageAReview {
		t.Fatalf("expected status unchanged, got %s", got)
	}
	if len(f.events.types()) != 0 {
		t.Fatalf("expected no events, got %v", f.events.types())
	}
}

func TestTransitionRejectsOwnerOfAnotherRequest(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusDraft)

	_, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "owner-2",
		ToStatus:  entities.RequestStatusCancelled,
	})
	if !errors.Is(err, domainerrors.ErrUnauthorizedActor) {
		t.Fatalf("expected ErrUnauthorizedActor, got %v", err)
	}
}

func TestTransitionOwnerCancelIsSilent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusDraft)

	result, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "owner-1",
		ToStatus:  entities.RequestStatusCancelled,
	})
	if err != nil || !result.Applied {
		t.Fatalf("expected cancel applied, got %+v err=%v", result, err)
	}
	if len(f.events.types()) != 0 {
		t.Fatalf("expected no events for cancel, got %v", f.events.types())
	}
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusSubmitted)

	result, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "owner-1",
		ToStatus:  entities.RequestStatusSubmitted,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.NoOp || result.Applied {
		t.Fatalf("expected no-op, got %+v", result)
	}
}

func TestTransitionRequiresInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.transitions.Transition(context.Background(), TransitionCommand{RequestID: " ", ActorID: "arc-1"})
	if !errors.Is(err, domainerrors.ErrInvalidRequestInput) {
		t.Fatalf("expected ErrInvalidRequestInput, got %v", err)
	}
}

func TestApplyStageAApprovalAdvancesToStageB(t *testing.T) {
	f := newFixture(t)
	request := f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageAReview)
	actor := entities.Actor{ID: "arc-1", Role: entities.RoleReviewerStageA}

	result, err := f.transitions.Apply(context.Background(), actor, request, entities.RequestStatusStageAApproved, TransitionOptions{})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !result.Applied || !result.AutoAdvanced {
		t.Fatalf("expected applied and auto-advanced, got %+v", result)
	}
	if result.Request.Status != entities.RequestStatusStageBReview {
		t.Fatalf("expected stage_b_review, got %s", result.Request.Status)
	}
	if result.Request.ReviewCycle != 2 {
		t.Fatalf("expected review cycle 2, got %d", result.Request.ReviewCycle)
	}
	wantDeadline := fixtureNow.Add(DefaultReviewPeriod)
	if !result.Request.ReviewDeadline.Equal(wantDeadline) {
		t.Fatalf("expected fresh deadline %s, got %s", wantDeadline, result.Request.ReviewDeadline)
	}
	if got := f.status(t, "req-1"); got != entities.RequestStatusStageBReview {
		t.Fatalf("expected stored stage_b_review, got %s", got)
	}

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if len(f.events.events) != 2 {
		t.Fatalf("expected decision and stage opened events, got %d", len(f.events.events))
	}
	decision, opened := f.events.events[0], f.events.events[1]
	if decision.Type != entities.NotificationDecisionReached || decision.Stage != entities.RequestStatusStageAReview {
		t.Fatalf("unexpected first event %+v", decision)
	}
	if opened.Type != entities.NotificationStageOpened || opened.Stage != entities.RequestStatusStageBReview {
		t.Fatalf("unexpected second event %+v", opened)
	}
}

func TestApplyLeavingReviewClearsDeadline(t *testing.T) {
	f := newFixture(t)
	request := f.seed(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusInReview)
	actor := entities.Actor{ID: "arc-1", Role: entities.RoleReviewerStageA}

	result, err := f.transitions.Apply(context.Background(), actor, request, entities.RequestStatusPending, TransitionOptions{})
	if err != nil || !result.Applied {
		t.Fatalf("expected return applied, got %+v err=%v", result, err)
	}
	if result.Request.ReviewDeadline != nil {
		t.Fatalf("expected deadline cleared, got %v", result.Request.ReviewDeadline)
	}
	if result.Request.ReviewCycle != 1 {
		t.Fatalf("expected cycle kept at 1, got %d", result.Request.ReviewCycle)
	}
}

func TestApplyStaleSnapshotReportsAlreadyResolved(t *testing.T) {
	f := newFixture(t)
	stale := f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageAReview)
	reviewer := entities.Actor{ID: "arc-1", Role: entities.RoleReviewerStageA}

	if _, err := f.transitions.Apply(context.Background(), reviewer, stale, entities.RequestStatusStageADenied, TransitionOptions{}); err != nil {
		t.Fatalf("deny failed: %v", err)
	}
	result, err := f.transitions.Apply(context.Background(), entities.SystemActor, stale, entities.RequestStatusStageAApproved, TransitionOptions{
		AutoApprovedReason: "review_deadline_elapsed:stage_a_review",
	})
	if err != nil {
		t.Fatalf("stale apply returned error: %v", err)
	}
	if result.Applied || !result.AlreadyResolved {
		t.Fatalf("expected already resolved, got %+v", result)
	}
	if result.Request.Status != entities.RequestStatusStageADenied {
		t.Fatalf("expected current status stage_a_denied, got %s", result.Request.Status)
	}
	if result.Request.AutoApprovedReason != "" {
		t.Fatalf("expected no auto-approval reason, got %q", result.Request.AutoApprovedReason)
	}
}

func TestConcurrentApplyCommitsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	snapshot := f.seed(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusInReview)

	const racers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		applied  int
		resolved int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.transitions.Apply(context.Background(), entities.SystemActor, snapshot, entities.RequestStatusApproved, TransitionOptions{
				AutoApprovedReason: "review_deadline_elapsed:in_review",
			})
			if err != nil {
				t.Errorf("apply failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Applied {
				applied++
			}
			if result.AlreadyResolved {
				resolved++
			}
		}()
	}
	wg.Wait()

	if applied != 1 || resolved != racers-1 {
		t.Fatalf("expected 1 applied and %d already resolved, got %d and %d", racers-1, applied, resolved)
	}
	if diff := cmp.Diff([]entities.NotificationType{entities.NotificationAutoApproved}, f.events.types()); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestTransitionCustomReviewPeriod(t *testing.T) {
	f := newFixture(t)
	f.transitions.ReviewPeriod = 10 * 24 * time.Hour
	f.seed(t, "req-1", entities.WorkflowVersionLegacy, entities.RequestStatusPending)

	result, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "arc-2",
		ToStatus:  entities.RequestStatusInReview,
	})
	if err != nil || !result.Applied {
		t.Fatalf("expected open applied, got %+v err=%v", result, err)
	}
	if want := fixtureNow.Add(10 * 24 * time.Hour); !result.Request.ReviewDeadline.Equal(want) {
		t.Fatalf("expected deadline %s, got %s", want, result.Request.ReviewDeadline)
	}
}

func TestTransitionStageResolutionRequiresTally(t *testing.T) {
	cases := []struct {
		name    string
		version entities.WorkflowVersion
		from    entities.RequestStatus
		actor   string
		to      entities.RequestStatus
	}{
		{name: "stage A approve", version: entities.WorkflowVersionMultiStage, from: entities.RequestStatusStageAReview, actor: "arc-1", to: entities.RequestStatusStageAApproved},
		{name: "stage A deny", version: entities.WorkflowVersionMultiStage, from: entities.RequestStatusStageAReview, actor: "arc-1", to: entities.RequestStatusStageADenied},
		{name: "stage B return", version: entities.WorkflowVersionMultiStage, from: entities.RequestStatusStageBReview, actor: "board-1", to: entities.RequestStatusStageBReturned},
		{name: "legacy approve", version: entities.WorkflowVersionLegacy, from: entities.RequestStatusInReview, actor: "arc-1", to: entities.RequestStatusApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "req-1", tc.version, tc.from)

			result, err := f.transitions.Transition(context.Background(), TransitionCommand{
				RequestID: "req-1",
				ActorID:   tc.actor,
				ToStatus:  tc.to,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Applied || result.Decision.Code != services.DecisionNotBackedByTally {
				t.Fatalf("expected not_backed_by_tally, got %+v", result.Decision)
			}
			if got := f.status(t, "req-1"); got != tc.from {
				t.Fatalf("expected status unchanged, got %s", got)
			}
			if len(f.events.types()) != 0 {
				t.Fatalf("expected no events, got %v", f.events.types())
			}
		})
	}
}

func TestTransitionStageResolutionBackedByTally(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "req-1", entities.WorkflowVersionMultiStage, entities.RequestStatusStageAReview)
	for _, voter := range []string{"arc-1", "arc-2"} {
		if err := f.store.SaveVote(context.Background(), entities.Vote{
			RequestID: "req-1",
			Stage:     entities.RequestStatusStageAReview,
			Cycle:     1,
			VoterID:   voter,
			Value:     entities.VoteValueApprove,
			CastAt:    fixtureNow,
		}, true); err != nil {
			t.Fatalf("save vote %s: %v", voter, err)
		}
	}

	denied, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "arc-3",
		ToStatus:  entities.RequestStatusStageADenied,
	})
	if err != nil || denied.Applied || denied.Decision.Code != services.DecisionNotBackedByTally {
		t.Fatalf("expected denial against an approving tally rejected, got %+v err=%v", denied.Decision, err)
	}

	approved, err := f.transitions.Transition(context.Background(), TransitionCommand{
		RequestID: "req-1",
		ActorID:   "arc-3",
		ToStatus:  entities.RequestStatusStageAApproved,
	})
	if err != nil || !approved.Applied {
		t.Fatalf("expected tally-backed approval applied, got %+v err=%v", approved.Decision, err)
	}
	if !approved.AutoAdvanced || approved.Request.Status != entities.RequestStatusStageBReview {
		t.Fatalf("expected advance to stage B review, got %+v", approved)
	}
}
