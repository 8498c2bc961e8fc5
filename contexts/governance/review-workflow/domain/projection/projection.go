// Package projection answers "could this stage still end this way?" for
// review screens. Its results are hints only: nothing that resolves a stage
// may import this package.
package projection

import "hoaportal/contexts/governance/review-workflow/domain/entities"

// Projection is a read-only view over a tally and the votes still uncast.
type Projection struct {
	Tally            entities.VoteTallyResult
	RemainingVotes   int
	ApprovalPossible bool
	DenialPossible   bool
	ReturnPossible   bool
	LeadingOutcome   entities.TallyOutcome
}

// RemainingVotes is the number of eligible voters who have not voted yet.
func RemainingVotes(tally entities.VoteTallyResult, totalEligible int) int {
	cast := tally.Approve + tally.Deny + tally.Return + tally.Abstain
	remaining := totalEligible - cast
	if remaining < 0 {
		return 0
	}
	return remaining
}

func IsApprovalStillPossible(tally entities.VoteTallyResult, totalEligible int) bool {
	return stillPossible(tally, tally.Approve, totalEligible)
}

func IsDenialStillPossible(tally entities.VoteTallyResult, totalEligible int) bool {
	return stillPossible(tally, tally.Deny, totalEligible)
}

func IsReturnStillPossible(tally entities.VoteTallyResult, totalEligible int) bool {
	return stillPossible(tally, tally.Return, totalEligible)
}

// stillPossible assumes every remaining voter backs the option. Remaining
// abstentions would only lower the majority, so the best case is all-in.
func stillPossible(tally entities.VoteTallyResult, current int, totalEligible int) bool {
	if tally.Outcome.Resolved() {
		return current >= tally.MajorityNeeded
	}
	if tally.ActiveVoters == 0 {
		return false
	}
	return current+RemainingVotes(tally, totalEligible) >= tally.MajorityNeeded
}

// Project bundles the helpers for one stage.
func Project(tally entities.VoteTallyResult, totalEligible int) Projection {
	return Projection{
		Tally:            tally,
		RemainingVotes:   RemainingVotes(tally, totalEligible),
		ApprovalPossible: IsApprovalStillPossible(tally, totalEligible),
		DenialPossible:   IsDenialStillPossible(tally, totalEligible),
		ReturnPossible:   IsReturnStillPossible(tally, totalEligible),
		LeadingOutcome:   leading(tally),
	}
}

func leading(tally entities.VoteTallyResult) entities.TallyOutcome {
	if tally.Outcome.Resolved() || tally.Outcome == entities.TallyOutcomeDeadlocked {
		return tally.Outcome
	}
	best := entities.TallyOutcomePending
	top := 0
	for _, candidate := range []struct {
		outcome entities.TallyOutcome
		count   int
	}{
		{entities.TallyOutcomeApproved, tally.Approve},
		{entities.TallyOutcomeDenied, tally.Deny},
		{entities.TallyOutcomeReturned, tally.Return},
	} {
		if candidate.count > top {
			best = candidate.outcome
			top = candidate.count
		}
	}
	return best
}
