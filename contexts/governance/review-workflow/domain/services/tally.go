package services

import "hoaportal/contexts/governance/review-workflow/domain/entities"

// Tally computes the authoritative outcome of a review stage. Abstentions
// shrink the denominator and never count toward an outcome. Resolution code
// must decide on this result alone.
func Tally(votes []entities.Vote, totalEligible int) entities.VoteTallyResult {
	result := entities.VoteTallyResult{}
	for _, vote := range votes {
		switch vote.Value {
		case entities.VoteValueApprove:
			result.Approve++
		case entities.VoteValueDeny:
			result.Deny++
		case entities.VoteValueReturn:
			result.Return++
		case entities.VoteValueAbstain:
			result.Abstain++
		}
	}

	result.ActiveVoters = totalEligible - result.Abstain
	if result.ActiveVoters < 0 {
		result.ActiveVoters = 0
	}
	result.MajorityNeeded = result.ActiveVoters/2 + 1
	result.AllVotesCast = len(votes) >= totalEligible

	switch {
	case result.ActiveVoters == 0:
		result.Outcome = entities.TallyOutcomeDeadlocked
	case result.Approve >= result.MajorityNeeded:
		result.Outcome = entities.TallyOutcomeApproved
	case result.Deny >= result.MajorityNeeded:
		result.Outcome = entities.TallyOutcomeDenied
	case result.Return >= result.MajorityNeeded:
		result.Outcome = entities.TallyOutcomeReturned
	default:
		result.Outcome = entities.TallyOutcomePending
	}
	return result
}
