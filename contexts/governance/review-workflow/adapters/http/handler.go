package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	application "hoaportal/contexts/governance/review-workflow/application"
	"hoaportal/contexts/governance/review-workflow/application/commands"
	"hoaportal/contexts/governance/review-workflow/application/queries"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	httptransport "hoaportal/contexts/governance/review-workflow/transport/http"
)

// Handler maps transport DTOs onto the review workflow use cases. Actor ids
// arrive already authenticated by the portal gateway.
type Handler struct {
	Create      commands.CreateRequestUseCase
	Transitions commands.TransitionUseCase
	Votes       commands.CastVoteUseCase
	Requests    queries.RequestQueryUseCase
	Projection  queries.ProjectionUseCase
	Logger      *slog.Logger
}

// CreateRequestHandler godoc
// @Summary Create a review request
// @Description Opens an architectural review request in its workflow's initial status.
// @Tags review-workflow
// @Accept json
// @Produce json
// @Param X-Actor-Id header string true "Owner id"
// @Param request body httptransport.CreateRequestRequest true "Request payload"
// @Success 201 {object} httptransport.RequestResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/review-requests [post]
func (h Handler) CreateRequestHandler(
	ctx context.Context,
	ownerID string,
	req httptransport.CreateRequestRequest,
) (httptransport.RequestResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("create review request received",
		"event", "http_create_request_received",
		"module", "governance/review-workflow",
		"layer", "transport",
		"owner_id", ownerID,
		"workflow_version", req.WorkflowVersion,
	)
	request, err := h.Create.Execute(ctx, commands.CreateRequestCommand{
		RequestID:       req.RequestID,
		OwnerID:         ownerID,
		Description:     req.Description,
		WorkflowVersion: entities.WorkflowVersion(req.WorkflowVersion),
	})
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return mapRequest(request), nil
}

// GetRequestHandler godoc
// @Summary Get a review request
// @Tags review-workflow
// @Produce json
// @Param request_id path string true "Request id"
// @Success 200 {object} httptransport.RequestResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/review-requests/{request_id} [get]
func (h Handler) GetRequestHandler(ctx context.Context, requestID string) (httptransport.RequestResponse, error) {
	request, err := h.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return mapRequest(request), nil
}

// TransitionHandler godoc
// @Summary Request a status change
// @Description Validates and applies a transition. A rejected transition returns 200 with allowed=false and the decision code.
// @Tags review-workflow
// @Accept json
// @Produce json
// @Param X-Actor-Id header string true "Acting member id"
// @Param request_id path string true "Request id"
// @Param request body httptransport.TransitionRequest true "Target status"
// @Success 200 {object} httptransport.TransitionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/review-requests/{request_id}/transitions [post]
func (h Handler) TransitionHandler(
	ctx context.Context,
	actorID string,
	requestID string,
	req httptransport.TransitionRequest,
) (httptransport.TransitionResponse, error) {
	result, err := h.Transitions.Transition(ctx, commands.TransitionCommand{
		RequestID: requestID,
		ActorID:   actorID,
		ToStatus:  entities.RequestStatus(strings.TrimSpace(req.ToStatus)),
	})
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return mapTransition(result), nil
}

// CastVoteHandler godoc
// @Summary Cast a vote on the open review stage
// @Tags review-workflow
// @Accept json
// @Produce json
// @Param X-Actor-Id header string true "Reviewer id"
// @Param request_id path string true "Request id"
// @Param request body httptransport.CastVoteRequest true "Vote value: approve, deny, return, abstain"
// @Success 200 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/review-requests/{request_id}/votes [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	voterID string,
	requestID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Votes.Execute(ctx, commands.CastVoteCommand{
		RequestID: requestID,
		VoterID:   voterID,
		Value:     entities.VoteValue(strings.ToLower(strings.TrimSpace(req.Value))),
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	resp := httptransport.CastVoteResponse{
		Vote:     mapVote(result.Vote),
		Replaced: result.Replaced,
		Tally:    mapTally(result.Tally),
	}
	if result.Transition != nil {
		transition := mapTransition(*result.Transition)
		resp.Transition = &transition
	}
	return resp, nil
}

// ListVotesHandler godoc
// @Summary List live votes of the current review cycle
// @Tags review-workflow
// @Produce json
// @Param request_id path string true "Request id"
// @Param stage query string false "Review stage, defaults to the current status"
// @Success 200 {object} httptransport.VotesResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/review-requests/{request_id}/votes [get]
func (h Handler) ListVotesHandler(ctx context.Context, requestID string, stage string) (httptransport.VotesResponse, error) {
	votes, err := h.Requests.ListVotes(ctx, requestID, entities.RequestStatus(strings.TrimSpace(stage)))
	if err != nil {
		return httptransport.VotesResponse{}, err
	}
	items := make([]httptransport.VoteResponse, 0, len(votes))
	for _, vote := range votes {
		items = append(items, mapVote(vote))
	}
	return httptransport.VotesResponse{Items: items}, nil
}

// ProjectionHandler godoc
// @Summary Project the open stage's possible outcomes
// @Description Display hints only; never used to resolve a stage.
// @Tags review-workflow
// @Produce json
// @Param request_id path string true "Request id"
// @Success 200 {object} httptransport.ProjectionResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/review-requests/{request_id}/projection [get]
func (h Handler) ProjectionHandler(ctx context.Context, requestID string) (httptransport.ProjectionResponse, error) {
	result, err := h.Projection.ProjectOutcome(ctx, requestID)
	if err != nil {
		return httptransport.ProjectionResponse{}, err
	}
	return httptransport.ProjectionResponse{
		RequestID:        result.RequestID,
		Stage:            string(result.Stage),
		Cycle:            result.Cycle,
		Eligible:         result.Eligible,
		Tally:            mapTally(result.Tally),
		RemainingVotes:   result.RemainingVotes,
		ApprovalPossible: result.ApprovalPossible,
		DenialPossible:   result.DenialPossible,
		ReturnPossible:   result.ReturnPossible,
		LeadingOutcome:   string(result.LeadingOutcome),
	}, nil
}

func mapRequest(request entities.Request) httptransport.RequestResponse {
	return httptransport.RequestResponse{
		RequestID:          request.RequestID,
		OwnerID:            request.OwnerID,
		Description:        request.Description,
		Status:             string(request.Status),
		WorkflowVersion:    int(request.WorkflowVersion),
		Stage:              request.Stage,
		ReviewCycle:        request.ReviewCycle,
		ReviewDeadline:     request.ReviewDeadline,
		AutoApprovedReason: request.AutoApprovedReason,
		CreatedAt:          request.CreatedAt,
		UpdatedAt:          request.UpdatedAt,
	}
}

func mapTransition(result commands.TransitionResult) httptransport.TransitionResponse {
	return httptransport.TransitionResponse{
		Allowed:         result.Decision.Allowed,
		Code:            string(result.Decision.Code),
		Reason:          result.Decision.Reason,
		Applied:         result.Applied,
		NoOp:            result.NoOp,
		AlreadyResolved: result.AlreadyResolved,
		AutoAdvanced:    result.AutoAdvanced,
		Request:         mapRequest(result.Request),
	}
}

func mapVote(vote entities.Vote) httptransport.VoteResponse {
	return httptransport.VoteResponse{
		RequestID: vote.RequestID,
		Stage:     string(vote.Stage),
		Cycle:     vote.Cycle,
		VoterID:   vote.VoterID,
		Value:     string(vote.Value),
		CastAt:    vote.CastAt,
	}
}

func mapTally(tally entities.VoteTallyResult) httptransport.TallyResponse {
	return httptransport.TallyResponse{
		Outcome:        string(tally.Outcome),
		Approve:        tally.Approve,
		Deny:           tally.Deny,
		Return:         tally.Return,
		Abstain:        tally.Abstain,
		ActiveVoters:   tally.ActiveVoters,
		MajorityNeeded: tally.MajorityNeeded,
		AllVotesCast:   tally.AllVotesCast,
	}
}
