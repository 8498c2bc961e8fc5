package queries

import (
	"context"
	"strings"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/domain/projection"
	"hoaportal/contexts/governance/review-workflow/domain/services"
	"hoaportal/contexts/governance/review-workflow/ports"
)

type RequestQueryUseCase struct {
	Requests ports.RequestRepository
	Votes    ports.VoteRepository
}

func (uc RequestQueryUseCase) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return entities.Request{}, domainerrors.ErrInvalidRequestInput
	}
	return uc.Requests.GetRequest(ctx, requestID)
}

// ListVotes returns the live votes of the request's current review cycle for
// stage. An empty stage means the request's current status.
func (uc RequestQueryUseCase) ListVotes(
	ctx context.Context,
	requestID string,
	stage entities.RequestStatus,
) ([]entities.Vote, error) {
	request, err := uc.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if stage == "" {
		stage = request.Status
	}
	return uc.Votes.ListVotes(ctx, request.RequestID, stage, request.ReviewCycle)
}

// OutcomeProjection is what a review screen shows next to the ballot.
type OutcomeProjection struct {
	RequestID string
	Stage     entities.RequestStatus
	Cycle     int
	Eligible  int
	projection.Projection
}

// ProjectionUseCase exposes UI-only "still possible" hints. Its output must
// never be used to resolve a stage.
type ProjectionUseCase struct {
	Requests  ports.RequestRepository
	Votes     ports.VoteRepository
	Directory ports.IdentityDirectory
	Validator *services.Validator
}

func (uc ProjectionUseCase) ProjectOutcome(ctx context.Context, requestID string) (OutcomeProjection, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return OutcomeProjection{}, domainerrors.ErrInvalidRequestInput
	}
	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return OutcomeProjection{}, err
	}
	workflow, ok := uc.Validator.Workflow(request.WorkflowVersion)
	if !ok {
		return OutcomeProjection{}, domainerrors.ErrUnknownWorkflowVersion
	}
	stage, ok := workflow.Stage(request.Status)
	if !ok {
		return OutcomeProjection{}, domainerrors.ErrVotingClosed
	}
	votes, err := uc.Votes.ListVotes(ctx, request.RequestID, stage.Status, request.ReviewCycle)
	if err != nil {
		return OutcomeProjection{}, err
	}
	eligible, err := uc.Directory.CountEligibleVoters(ctx, stage.VoterRole)
	if err != nil {
		return OutcomeProjection{}, err
	}
	return OutcomeProjection{
		RequestID:  request.RequestID,
		Stage:      stage.Status,
		Cycle:      request.ReviewCycle,
		Eligible:   eligible,
		Projection: projection.Project(services.Tally(votes, eligible), eligible),
	}, nil
}
