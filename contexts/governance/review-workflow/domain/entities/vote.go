package entities

import "time"

type VoteValue string

const (
	VoteValueApprove VoteValue = "approve"
	VoteValueDeny    VoteValue = "deny"
	VoteValueReturn  VoteValue = "return"
	VoteValueAbstain VoteValue = "abstain"
)

func (v VoteValue) Valid() bool {
	switch v {
	case VoteValueApprove, VoteValueDeny, VoteValueReturn, VoteValueAbstain:
		return true
	default:
		return false
	}
}

// Vote is one reviewer's live vote for a review stage. Stage is the review
// status being voted on and Cycle the request's review cycle at cast time.
type Vote struct {
	RequestID string
	Stage     RequestStatus
	Cycle     int
	VoterID   string
	Value     VoteValue
	CastAt    time.Time
}

type TallyOutcome string

const (
	TallyOutcomeApproved   TallyOutcome = "approved"
	TallyOutcomeDenied     TallyOutcome = "denied"
	TallyOutcomeReturned   TallyOutcome = "returned"
	TallyOutcomePending    TallyOutcome = "pending"
	TallyOutcomeDeadlocked TallyOutcome = "deadlocked"
)

// Resolved reports whether the outcome decides the stage.
func (o TallyOutcome) Resolved() bool {
	return o == TallyOutcomeApproved || o == TallyOutcomeDenied || o == TallyOutcomeReturned
}

// VoteTallyResult is derived from cast votes and never persisted.
type VoteTallyResult struct {
	Outcome        TallyOutcome
	Approve        int
	Deny           int
	Return         int
	Abstain        int
	ActiveVoters   int
	MajorityNeeded int
	AllVotesCast   bool
}
