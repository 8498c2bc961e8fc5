package commands

import (
	"context"

	"hoaportal/contexts/governance/review-workflow/application/notifications"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/domain/services"
)

// EventDispatcher is satisfied by notifications.Dispatcher.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event notifications.WorkflowEvent) notifications.DispatchResult
}

func dispatch(ctx context.Context, dispatcher EventDispatcher, event notifications.WorkflowEvent) {
	if dispatcher == nil {
		return
	}
	dispatcher.Dispatch(ctx, event)
}

// transitionEvent picks the announcement for an applied edge. Closing a review
// stage wins over opening the next one; owner cancellations are silent.
func transitionEvent(
	workflow services.Workflow,
	from entities.RequestStatus,
	updated entities.Request,
	autoApproved bool,
) (notifications.WorkflowEvent, bool) {
	to := updated.Status
	switch {
	case workflow.IsResolutionEdge(from, to) && autoApproved:
		return notifications.WorkflowEvent{
			Type:    entities.NotificationAutoApproved,
			Request: updated,
			Stage:   from,
			Context: map[string]string{"from_status": string(from)},
		}, true
	case workflow.IsResolutionEdge(from, to):
		return notifications.WorkflowEvent{
			Type:    entities.NotificationDecisionReached,
			Request: updated,
			Stage:   from,
			Context: map[string]string{"from_status": string(from), "decision": string(to)},
		}, true
	case workflow.IsReviewStatus(to):
		return notifications.WorkflowEvent{
			Type:    entities.NotificationStageOpened,
			Request: updated,
			Stage:   to,
		}, true
	case to == workflow.SubmittedStatus():
		return notifications.WorkflowEvent{
			Type:    entities.NotificationSubmitted,
			Request: updated,
		}, true
	default:
		return notifications.WorkflowEvent{}, false
	}
}
