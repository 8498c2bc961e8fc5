package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateRequestRequest struct {
	RequestID       string `json:"request_id,omitempty"`
	Description     string `json:"description"`
	WorkflowVersion int    `json:"workflow_version"`
}

type RequestResponse struct {
	RequestID          string     `json:"request_id"`
	OwnerID            string     `json:"owner_id"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	WorkflowVersion    int        `json:"workflow_version"`
	Stage              string     `json:"stage,omitempty"`
	ReviewCycle        int        `json:"review_cycle"`
	ReviewDeadline     *time.Time `json:"review_deadline,omitempty"`
	AutoApprovedReason string     `json:"auto_approved_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type TransitionRequest struct {
	ToStatus string `json:"to_status"`
}

// TransitionResponse reports a rejected transition with Allowed=false and the
// decision code; that is not an HTTP error.
type TransitionResponse struct {
	Allowed         bool            `json:"allowed"`
	Code            string          `json:"code"`
	Reason          string          `json:"reason,omitempty"`
	Applied         bool            `json:"applied"`
	NoOp            bool            `json:"no_op"`
	AlreadyResolved bool            `json:"already_resolved"`
	AutoAdvanced    bool            `json:"auto_advanced"`
	Request         RequestResponse `json:"request"`
}

type CastVoteRequest struct {
	Value string `json:"value"`
}

type TallyResponse struct {
	Outcome        string `json:"outcome"`
	Approve        int    `json:"approve"`
	Deny           int    `json:"deny"`
	Return         int    `json:"return"`
	Abstain        int    `json:"abstain"`
	ActiveVoters   int    `json:"active_voters"`
	MajorityNeeded int    `json:"majority_needed"`
	AllVotesCast   bool   `json:"all_votes_cast"`
}

type VoteResponse struct {
	RequestID string    `json:"request_id"`
	Stage     string    `json:"stage"`
	Cycle     int       `json:"cycle"`
	VoterID   string    `json:"voter_id"`
	Value     string    `json:"value"`
	CastAt    time.Time `json:"cast_at"`
}

type CastVoteResponse struct {
	Vote       VoteResponse        `json:"vote"`
	Replaced   bool                `json:"replaced"`
	Tally      TallyResponse       `json:"tally"`
	Transition *TransitionResponse `json:"transition,omitempty"`
}

type VotesResponse struct {
	Items []VoteResponse `json:"items"`
}

type ProjectionResponse struct {
	RequestID        string        `json:"request_id"`
	Stage            string        `json:"stage"`
	Cycle            int           `json:"cycle"`
	Eligible         int           `json:"eligible"`
	Tally            TallyResponse `json:"tally"`
	RemainingVotes   int           `json:"remaining_votes"`
	ApprovalPossible bool          `json:"approval_possible"`
	DenialPossible   bool          `json:"denial_possible"`
	ReturnPossible   bool          `json:"return_possible"`
	LeadingOutcome   string        `json:"leading_outcome"`
}
