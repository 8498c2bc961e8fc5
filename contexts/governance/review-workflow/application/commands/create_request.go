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

type CreateRequestCommand struct {
	RequestID       string
	OwnerID         string
	Description     string
	WorkflowVersion entities.WorkflowVersion
}

// CreateRequestUseCase opens a request in its workflow's initial status.
type CreateRequestUseCase struct {
	Requests   ports.RequestRepository
	Validator  *services.Validator
	Directory  ports.IdentityDirectory
	Dispatcher EventDispatcher
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc CreateRequestUseCase) Execute(ctx context.Context, cmd CreateRequestCommand) (entities.Request, error) {
	logger := application.ResolveLogger(uc.Logger)
	workflow, ok := uc.Validator.Workflow(cmd.WorkflowVersion)
	if !ok {
		logger.Warn("request create rejected for unknown workflow version",
			"event", "review_request_create_unknown_version",
			"module", "governance/review-workflow",
			"layer", "application",
			"owner_id", strings.TrimSpace(cmd.OwnerID),
			"workflow_version", int(cmd.WorkflowVersion),
		)
		return entities.Request{}, domainerrors.ErrUnknownWorkflowVersion
	}

	actor, err := uc.Directory.ResolveActor(ctx, strings.TrimSpace(cmd.OwnerID))
	if err != nil {
		return entities.Request{}, err
	}
	if actor.Role != entities.RoleOwner {
		return entities.Request{}, domainerrors.ErrUnauthorizedActor
	}

	requestID := strings.TrimSpace(cmd.RequestID)
	if requestID == "" {
		requestID, err = uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Request{}, err
		}
	}
	now := uc.now()
	request := entities.Request{
		RequestID:       requestID,
		OwnerID:         actor.ID,
		Description:     strings.TrimSpace(cmd.Description),
		Status:          workflow.Initial(),
		WorkflowVersion: cmd.WorkflowVersion,
		Stage:           entities.StageFor(cmd.WorkflowVersion, workflow.Initial()),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !request.ValidateCreate() {
		logger.Warn("request create validation failed",
			"event", "review_request_create_validation_failed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", requestID,
			"owner_id", actor.ID,
		)
		return entities.Request{}, domainerrors.ErrInvalidRequestInput
	}
	if err := uc.Requests.CreateRequest(ctx, request); err != nil {
		logger.Error("request create failed",
			"event", "review_request_create_failed",
			"module", "governance/review-workflow",
			"layer", "application",
			"request_id", requestID,
			"error", err.Error(),
		)
		return entities.Request{}, err
	}

	logger.Info("request created",
		"event", "review_request_created",
		"module", "governance/review-workflow",
		"layer", "application",
		"request_id", request.RequestID,
		"owner_id", request.OwnerID,
		"status", string(request.Status),
		"workflow_version", int(request.WorkflowVersion),
	)
	if request.Status == workflow.SubmittedStatus() {
		dispatch(ctx, uc.Dispatcher, notifications.WorkflowEvent{
			Type:    entities.NotificationSubmitted,
			Request: request,
		})
	}
	return request, nil
}

func (uc CreateRequestUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
