package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"hoaportal/contexts/governance/review-workflow/adapters/memory"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/domain/services"
)

func seededStore(t *testing.T, status entities.RequestStatus) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	for _, id := range []string{"arc-1", "arc-2", "arc-3", "arc-4", "arc-5"} {
		store.SetMember(entities.Actor{ID: id, Role: entities.RoleReviewerStageA})
	}
	if err := store.CreateRequest(context.Background(), entities.Request{
		RequestID:       "req-1",
		OwnerID:         "owner-1",
		Description:     "deck extension",
		Status:          status,
		WorkflowVersion: entities.WorkflowVersionMultiStage,
		ReviewCycle:     2,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func saveVote(t *testing.T, store *memory.Store, voter string, cycle int, value entities.VoteValue) {
	t.Helper()
	if err := store.SaveVote(context.Background(), entities.Vote{
		RequestID: "req-1",
		Stage:     entities.RequestStatusStageAReview,
		Cycle:     cycle,
		VoterID:   voter,
		Value:     value,
		CastAt:    time.Now().UTC(),
	}, true); err != nil {
		t.Fatalf("save vote: %v", err)
	}
}

func TestListVotesDefaultsToCurrentStageAndCycle(t *testing.T) {
	store := seededStore(t, entities.RequestStatusStageAReview)
	saveVote(t, store, "arc-1", 1, entities.VoteValueReturn)
	saveVote(t, store, "arc-1", 2, entities.VoteValueApprove)

	uc := RequestQueryUseCase{Requests: store, Votes: store}
	votes, err := uc.ListVotes(context.Background(), "req-1", "")
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 || votes[0].Value != entities.VoteValueApprove {
		t.Fatalf("expected only the current cycle vote, got %+v", votes)
	}
	if _, err := uc.GetRequest(context.Background(), " "); !errors.Is(err, domainerrors.ErrInvalidRequestInput) {
		t.Fatalf("expected ErrInvalidRequestInput, got %v", err)
	}
}

func TestProjectOutcome(t *testing.T) {
	store := seededStore(t, entities.RequestStatusStageAReview)
	saveVote(t, store, "arc-1", 2, entities.VoteValueApprove)
	saveVote(t, store, "arc-2", 2, entities.VoteValueApprove)
	saveVote(t, store, "arc-3", 2, entities.VoteValueDeny)

	uc := ProjectionUseCase{Requests: store, Votes: store, Directory: store, Validator: services.DefaultValidator()}
	got, err := uc.ProjectOutcome(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if got.Eligible != 5 || got.Cycle != 2 || got.Stage != entities.RequestStatusStageAReview {
		t.Fatalf("unexpected header %+v", got)
	}
	if got.RemainingVotes != 2 {
		t.Fatalf("expected 2 remaining votes, got %d", got.RemainingVotes)
	}
	if !got.ApprovalPossible {
		t.Fatalf("expected approval still possible")
	}
	if got.ReturnPossible {
		t.Fatalf("expected return no longer possible with 2 votes left and 3 needed")
	}
	if got.Tally.Outcome != entities.TallyOutcomePending {
		t.Fatalf("expected pending tally, got %s", got.Tally.Outcome)
	}
}

func TestProjectOutcomeOutsideReview(t *testing.T) {
	store := seededStore(t, entities.RequestStatusSubmitted)
	uc := ProjectionUseCase{Requests: store, Votes: store, Directory: store, Validator: services.DefaultValidator()}
	if _, err := uc.ProjectOutcome(context.Background(), "req-1"); !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected ErrVotingClosed, got %v", err)
	}
}
