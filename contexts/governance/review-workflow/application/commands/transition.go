package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "hoaportal/contexts/governance/review-workflow/application"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/domain/services"
	"hoaportal/contexts/governance/review-workflow/ports"
)

const DefaultReviewPeriod = 30 * 24 * time.Hour

// TransitionCommand asks for a status change on behalf of an actor resolved
// through the identity directory.
type TransitionCommand struct {
	RequestID string
	ActorID   string
	ToStatus  entities.RequestStatus
}

// TransitionOptions carries system-only details of a transition.
type TransitionOptions struct {
	AutoApprovedReason string
}

// TransitionResult reports what happened. A rejected transition is not an
// error: Decision carries the code and reason for the caller to map.
type TransitionResult struct {
	Request         entities.Request
	Decision        services.TransitionDecision
	Applied         bool
	NoOp            bool
	AlreadyResolved bool
	AutoAdvanced    bool
}

// TransitionUseCase is the only path that writes request status. Every write
// is a compare-and-swap on the status the decision was made against.
type TransitionUseCase struct {
	Requests     ports.RequestRepository
	Votes        ports.VoteRepository
	Validator    *services.Validator
	Directory    ports.IdentityDirectory
	Dispatcher   EventDispatcher
	Metrics      ports.Metrics
	Clock        ports.Clock
	ReviewPeriod time.Duration
	Logger       *slog.Logger
}

func (uc TransitionUseCase) Transition(ctx context.Context, cmd TransitionCommand) (TransitionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if requestID == "" || actorID == "" || strings.TrimSpace(string(cmd.ToStatus)) == "" {
		logger.Warn("transition validation failed",
			"event", "review_transition_validation_failed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", requestID,
			"actor_id", actorID,
		)
		return TransitionResult{}, domainerrors.ErrInvalidRequestInput
	}

	actor, err := uc.Directory.ResolveActor(ctx, actorID)
	if err != nil {
		return TransitionResult{}, err
	}
	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return TransitionResult{}, err
	}
	if actor.Role == entities.RoleOwner && actor.ID != request.OwnerID {
		logger.Warn("transition rejected for non-owner",
			"event", "review_transition_owner_mismatch",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"actor_id", actor.ID,
		)
		return TransitionResult{}, domainerrors.ErrUnauthorizedActor
	}
	decision, err := uc.checkTally(ctx, actor, request, cmd.ToStatus)
	if err != nil {
		return TransitionResult{}, err
	}
	if !decision.Allowed {
		ports.ResolveMetrics(uc.Metrics).TransitionRejected(string(decision.Code))
		logger.Warn("transition rejected without tally",
			"event", "review_transition_tally_rejected",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"actor_id", actor.ID,
			"from_status", string(request.Status),
			"to_status", string(cmd.ToStatus),
			"reason", decision.Reason,
		)
		return TransitionResult{Request: request, Decision: decision}, nil
	}
	return uc.Apply(ctx, actor, request, cmd.ToStatus, TransitionOptions{})
}

// checkTally holds a stage voter to the stage's votes: closing the stage by
// hand is allowed only toward the outcome the current cycle's tally reached.
// Other roles fall through to the validator.
func (uc TransitionUseCase) checkTally(
	ctx context.Context,
	actor entities.Actor,
	request entities.Request,
	to entities.RequestStatus,
) (services.TransitionDecision, error) {
	allowed := services.TransitionDecision{Allowed: true, Code: services.DecisionAllowed}
	workflow, ok := uc.Validator.Workflow(request.WorkflowVersion)
	if !ok {
		return allowed, nil
	}
	stage, ok := workflow.Stage(request.Status)
	if !ok || actor.Role != stage.VoterRole || !workflow.IsResolutionEdge(request.Status, to) {
		return allowed, nil
	}
	var votes []entities.Vote
	if uc.Votes != nil {
		listed, err := uc.Votes.ListVotes(ctx, request.RequestID, stage.Status, request.ReviewCycle)
		if err != nil {
			return services.TransitionDecision{}, err
		}
		votes = listed
	}
	eligible, err := uc.Directory.CountEligibleVoters(ctx, stage.VoterRole)
	if err != nil {
		return services.TransitionDecision{}, err
	}
	return services.CheckResolution(workflow, request.Status, to, services.Tally(votes, eligible)), nil
}

// Apply validates and writes a transition against the request snapshot the
// caller read. Vote resolution and the deadline sweep enter here directly.
func (uc TransitionUseCase) Apply(
	ctx context.Context,
	actor entities.Actor,
	request entities.Request,
	to entities.RequestStatus,
	opts TransitionOptions,
) (TransitionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	metrics := ports.ResolveMetrics(uc.Metrics)

	decision := uc.Validator.ValidateTransition(actor.Role, request.Status, to, request.WorkflowVersion)
	result := TransitionResult{Request: request, Decision: decision}
	if !decision.Allowed {
		metrics.TransitionRejected(string(decision.Code))
		logger.Warn("transition rejected",
			"event", "review_transition_rejected",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"actor_id", actor.ID,
			"role", string(actor.Role),
			"from_status", string(request.Status),
			"to_status", string(to),
			"code", string(decision.Code),
			"reason", decision.Reason,
		)
		return result, nil
	}
	if decision.NoOp() {
		result.NoOp = true
		return result, nil
	}
	workflow, _ := uc.Validator.Workflow(request.WorkflowVersion)

	updated, applied, err := uc.write(ctx, workflow, request, to, opts)
	if err != nil {
		logger.Error("transition write failed",
			"event", "review_transition_write_failed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"from_status", string(request.Status),
			"to_status", string(to),
			"error", err.Error(),
		)
		return result, err
	}
	if !applied {
		current, err := uc.Requests.GetRequest(ctx, request.RequestID)
		if err != nil {
			return result, err
		}
		logger.Info("transition lost compare-and-swap",
			"event", "review_transition_already_resolved",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", request.RequestID,
			"expected_status", string(request.Status),
			"current_status", string(current.Status),
			"to_status", string(to),
		)
		result.Request = current
		result.AlreadyResolved = true
		return result, nil
	}

	metrics.TransitionApplied(request.WorkflowVersion, request.Status, to)
	logger.Info("transition applied",
		"event", "review_transition_applied",
		"module", "governance/review-workflow",
		"layer", "application",
		"request_id", updated.RequestID,
		"actor_id", actor.ID,
		"role", string(actor.Role),
		"from_status", string(request.Status),
		"to_status", string(updated.Status),
		"review_cycle", updated.ReviewCycle,
	)
	result.Request = updated
	result.Applied = true
	if event, ok := transitionEvent(workflow, request.Status, updated, opts.AutoApprovedReason != ""); ok {
		dispatch(ctx, uc.Dispatcher, event)
	}

	return uc.autoAdvance(ctx, workflow, result)
}

// autoAdvance applies the system advancement edge out of the landed status,
// if any. Apply recurses, so chains are followed to their end.
func (uc TransitionUseCase) autoAdvance(
	ctx context.Context,
	workflow services.Workflow,
	result TransitionResult,
) (TransitionResult, error) {
	next, ok := workflow.AutoAdvanceTarget(result.Request.Status)
	if !ok {
		return result, nil
	}
	advanced, err := uc.Apply(ctx, entities.SystemActor, result.Request, next, TransitionOptions{})
	if err != nil {
		return result, err
	}
	result.Request = advanced.Request
	result.AutoAdvanced = advanced.Applied
	return result, nil
}

func (uc TransitionUseCase) write(
	ctx context.Context,
	workflow services.Workflow,
	request entities.Request,
	to entities.RequestStatus,
	opts TransitionOptions,
) (entities.Request, bool, error) {
	now := uc.now()
	update := ports.StatusUpdate{
		RequestID:          request.RequestID,
		ExpectedStatus:     request.Status,
		Status:             to,
		Stage:              entities.StageFor(request.WorkflowVersion, to),
		AutoApprovedReason: request.AutoApprovedReason,
		ReviewCycle:        request.ReviewCycle,
		UpdatedAt:          now,
	}
	if opts.AutoApprovedReason != "" {
		update.AutoApprovedReason = opts.AutoApprovedReason
	}
	if workflow.IsReviewStatus(to) {
		deadline := now.Add(uc.resolveReviewPeriod())
		update.ReviewDeadline = &deadline
		update.ReviewCycle = request.ReviewCycle + 1
	}

	applied, err := uc.Requests.CompareAndSwapStatus(ctx, update)
	if err != nil || !applied {
		return entities.Request{}, false, err
	}

	updated := request
	updated.Status = update.Status
	updated.Stage = update.Stage
	updated.ReviewDeadline = update.ReviewDeadline
	updated.AutoApprovedReason = update.AutoApprovedReason
	updated.ReviewCycle = update.ReviewCycle
	updated.UpdatedAt = update.UpdatedAt
	return updated, true, nil
}

func (uc TransitionUseCase) resolveReviewPeriod() time.Duration {
	if uc.ReviewPeriod <= 0 {
		return DefaultReviewPeriod
	}
	return uc.ReviewPeriod
}

func (uc TransitionUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
