package projection

import (
	"testing"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
)

func tallyOf(outcome entities.TallyOutcome, approve, deny, ret, abstain, total int) entities.VoteTallyResult {
	active := total - abstain
	if active < 0 {
		active = 0
	}
	return entities.VoteTallyResult{
		Outcome:        outcome,
		Approve:        approve,
		Deny:           deny,
		Return:         ret,
		Abstain:        abstain,
		ActiveVoters:   active,
		MajorityNeeded: active/2 + 1,
	}
}

func TestProjectPendingStage(t *testing.T) {
	// 5 eligible, 1 approve, 2 deny: 2 votes outstanding, majority 3.
	view := Project(tallyOf(entities.TallyOutcomePending, 1, 2, 0, 0, 5), 5)
	if view.RemainingVotes != 2 {
		t.Fatalf("expected 2 remaining votes, got %d", view.RemainingVotes)
	}
	if !view.ApprovalPossible || !view.DenialPossible {
		t.Fatalf("expected approval and denial reachable, got %+v", view)
	}
	if view.ReturnPossible {
		t.Fatalf("expected return unreachable, got %+v", view)
	}
	if view.LeadingOutcome != entities.TallyOutcomeDenied {
		t.Fatalf("expected denial leading, got %s", view.LeadingOutcome)
	}
}

func TestProjectResolvedStage(t *testing.T) {
	view := Project(tallyOf(entities.TallyOutcomeApproved, 2, 0, 0, 0, 3), 3)
	if !view.ApprovalPossible || view.DenialPossible || view.ReturnPossible {
		t.Fatalf("expected only approval possible, got %+v", view)
	}
}

func TestProjectDeadlockedStage(t *testing.T) {
	view := Project(tallyOf(entities.TallyOutcomeDeadlocked, 0, 0, 0, 3, 3), 3)
	if view.ApprovalPossible || view.DenialPossible || view.ReturnPossible {
		t.Fatalf("expected nothing reachable, got %+v", view)
	}
	if view.RemainingVotes != 0 {
		t.Fatalf("expected no remaining votes, got %d", view.RemainingVotes)
	}
}
