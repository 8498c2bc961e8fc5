package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "hoaportal/contexts/governance/review-workflow/application"
	"hoaportal/contexts/governance/review-workflow/application/notifications"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/domain/services"
	"hoaportal/contexts/governance/review-workflow/ports"
)

// RevotePolicy decides what a second vote by the same voter in the same open
// stage does.
type RevotePolicy string

const (
	RevotePolicyOverwrite RevotePolicy = "overwrite"
	RevotePolicyReject    RevotePolicy = "reject"
)

func (p RevotePolicy) Valid() bool {
	return p == RevotePolicyOverwrite || p == RevotePolicyReject
}

type CastVoteCommand struct {
	RequestID string
	VoterID   string
	Value     entities.VoteValue
}

// CastVoteResult carries the recorded vote, the fresh tally and, when the
// tally resolved the stage, the resulting transition.
type CastVoteResult struct {
	Vote       entities.Vote
	Replaced   bool
	Tally      entities.VoteTallyResult
	Transition *TransitionResult
}

type CastVoteUseCase struct {
	Requests     ports.RequestRepository
	Votes        ports.VoteRepository
	Directory    ports.IdentityDirectory
	Validator    *services.Validator
	Transitions  TransitionUseCase
	Dispatcher   EventDispatcher
	RevotePolicy RevotePolicy
	Clock        ports.Clock
	Logger       *slog.Logger
}

func (uc CastVoteUseCase) Execute(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	voterID := strings.TrimSpace(cmd.VoterID)
	if requestID == "" || voterID == "" || !cmd.Value.Valid() {
		logger.Warn("vote validation failed",
			"event", "review_vote_validation_failed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", requestID,
			"voter_id", voterID,
			"value", string(cmd.Value),
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVote
	}

	actor, err := uc.Directory.ResolveActor(ctx, voterID)
	if err != nil {
		return CastVoteResult{}, err
	}
	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return CastVoteResult{}, err
	}
	workflow, ok := uc.Validator.Workflow(request.WorkflowVersion)
	if !ok {
		return CastVoteResult{}, domainerrors.ErrUnknownWorkflowVersion
	}
	stage, ok := workflow.Stage(request.Status)
	if !ok {
		logger.Warn("vote rejected outside review stage",
			"event", "review_vote_stage_closed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"voter_id", actor.ID,
			"status", string(request.Status),
		)
		return CastVoteResult{}, domainerrors.ErrVotingClosed
	}
	if actor.Role != stage.VoterRole {
		logger.Warn("vote rejected for role",
			"event", "review_vote_role_rejected",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"voter_id", actor.ID,
			"role", string(actor.Role),
			"stage", string(stage.Status),
		)
		return CastVoteResult{}, domainerrors.ErrUnauthorizedActor
	}

	_, replaced, err := uc.Votes.GetVote(ctx, request.RequestID, stage.Status, request.ReviewCycle, actor.ID)
	if err != nil {
		return CastVoteResult{}, err
	}
	vote := entities.Vote{
		RequestID: request.RequestID,
		Stage:     stage.Status,
		Cycle:     request.ReviewCycle,
		VoterID:   actor.ID,
		Value:     cmd.Value,
		CastAt:    uc.now(),
	}
	if err := uc.Votes.SaveVote(ctx, vote, uc.resolveRevotePolicy() == RevotePolicyOverwrite); err != nil {
		logger.Warn("vote save failed",
			"event", "review_vote_save_failed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"voter_id", actor.ID,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}

	votes, err := uc.Votes.ListVotes(ctx, request.RequestID, stage.Status, request.ReviewCycle)
	if err != nil {
		return CastVoteResult{}, err
	}
	eligible, err := uc.Directory.CountEligibleVoters(ctx, stage.VoterRole)
	if err != nil {
		return CastVoteResult{}, err
	}
	tally := services.Tally(votes, eligible)
	result := CastVoteResult{Vote: vote, Replaced: replaced, Tally: tally}

	logger.Info("vote recorded",
		"event", "review_vote_recorded",
		"module", "governance/review-workflow",
		"layer", "application",
		"request_id", request.RequestID,
		"voter_id", actor.ID,
		"stage", string(stage.Status),
		"review_cycle", request.ReviewCycle,
		"value", string(vote.Value),
		"replaced", replaced,
		"outcome", string(tally.Outcome),
		"active_voters", tally.ActiveVoters,
		"majority_needed", tally.MajorityNeeded,
	)
	dispatch(ctx, uc.Dispatcher, notifications.WorkflowEvent{
		Type:    entities.NotificationVoteCast,
		Request: request,
		Stage:   stage.Status,
	})

	if tally.Outcome == entities.TallyOutcomeDeadlocked {
		logger.Warn("review stage deadlocked",
			"event", "review_vote_deadlocked",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"stage", string(stage.Status),
		)
		return result, nil
	}
	target, ok := workflow.ResolutionTarget(stage.Status, tally.Outcome)
	if !ok {
		return result, nil
	}
	transition, err := uc.Transitions.Apply(ctx, actor, request, target, TransitionOptions{})
	if err != nil {
		return result, err
	}
	result.Transition = &transition
	return result, nil
}

func (uc CastVoteUseCase) resolveRevotePolicy() RevotePolicy {
	if !uc.RevotePolicy.Valid() {
		return RevotePolicyOverwrite
	}
	return uc.RevotePolicy
}

func (uc CastVoteUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
