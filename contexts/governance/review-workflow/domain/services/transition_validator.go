package services

import (
	"fmt"
	"sort"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
)

type DecisionCode string

const (
	DecisionAllowed                DecisionCode = "allowed"
	DecisionNoOp                   DecisionCode = "no_op"
	DecisionUnknownWorkflowVersion DecisionCode = "unknown_workflow_version"
	DecisionUnknownFromState       DecisionCode = "unknown_from_state"
	DecisionUnknownToState         DecisionCode = "unknown_to_state"
	DecisionTerminalState          DecisionCode = "terminal_state"
	DecisionEdgeNotInGraph         DecisionCode = "edge_not_in_graph"
	DecisionUnknownRole            DecisionCode = "unknown_role"
	DecisionRoleNotPermitted       DecisionCode = "role_not_permitted"
	DecisionNotBackedByTally       DecisionCode = "not_backed_by_tally"
)

// TransitionDecision is the structured allow/deny answer callers map directly
// to a rejection response.
type TransitionDecision struct {
	Allowed bool
	Code    DecisionCode
	Reason  string
}

// NoOp reports an allowed same-state transition that must not be written.
func (d TransitionDecision) NoOp() bool {
	return d.Allowed && d.Code == DecisionNoOp
}

// Validator gates status changes against the workflow graph of the request's
// version and the acting role's allow-list. It is safe for concurrent use;
// workflows are immutable after construction.
type Validator struct {
	workflows map[entities.WorkflowVersion]Workflow
}

func NewValidator(specs ...GraphSpec) (*Validator, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one workflow version is required", domainerrors.ErrInvalidWorkflowDefinition)
	}
	workflows := make(map[entities.WorkflowVersion]Workflow, len(specs))
	for _, spec := range specs {
		if _, exists := workflows[spec.Version]; exists {
			return nil, fmt.Errorf("%w: workflow version %d declared twice", domainerrors.ErrInvalidWorkflowDefinition, spec.Version)
		}
		workflow, err := NewWorkflow(spec)
		if err != nil {
			return nil, err
		}
		workflows[spec.Version] = workflow
	}
	return &Validator{workflows: workflows}, nil
}

// DefaultValidator builds a validator over DefaultGraphSpecs.
func DefaultValidator() *Validator {
	validator, err := NewValidator(DefaultGraphSpecs()...)
	if err != nil {
		panic(err)
	}
	return validator
}

// Workflow selects the graph for a version once so callers do not branch on
// the version themselves.
func (v *Validator) Workflow(version entities.WorkflowVersion) (Workflow, bool) {
	workflow, ok := v.workflows[version]
	return workflow, ok
}

func (v *Validator) Versions() []entities.WorkflowVersion {
	items := make([]entities.WorkflowVersion, 0, len(v.workflows))
	for version := range v.workflows {
		items = append(items, version)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}

// CanTransition checks the bare state machine. Same-state requests are an
// allowed no-op for every declared state, terminal ones included.
func (v *Validator) CanTransition(
	from entities.RequestStatus,
	to entities.RequestStatus,
	version entities.WorkflowVersion,
) TransitionDecision {
	workflow, ok := v.workflows[version]
	if !ok {
		return deny(DecisionUnknownWorkflowVersion, "workflow version %d is not configured", version)
	}
	return canTransition(workflow, from, to)
}

// ValidateTransition applies CanTransition and then the actor role's edge
// allow-list.
func (v *Validator) ValidateTransition(
	role entities.Role,
	from entities.RequestStatus,
	to entities.RequestStatus,
	version entities.WorkflowVersion,
) TransitionDecision {
	if !role.Valid() {
		return deny(DecisionUnknownRole, "role %q is not recognized", role)
	}
	decision := v.CanTransition(from, to, version)
	if !decision.Allowed || decision.NoOp() {
		return decision
	}
	workflow := v.workflows[version]
	if !workflow.RoleAllows(role, from, to) {
		return deny(DecisionRoleNotPermitted, "role %s may not move a request from %s to %s", role, from, to)
	}
	return decision
}

func canTransition(workflow Workflow, from, to entities.RequestStatus) TransitionDecision {
	if !workflow.HasState(from) {
		return deny(DecisionUnknownFromState, "status %q is not part of workflow v%d", from, workflow.Version())
	}
	if from == to {
		return TransitionDecision{
			Allowed: true,
			Code:    DecisionNoOp,
			Reason:  fmt.Sprintf("request is already %s", from),
		}
	}
	if !workflow.HasState(to) {
		return deny(DecisionUnknownToState, "target status %q is not part of workflow v%d", to, workflow.Version())
	}
	if workflow.IsTerminal(from) {
		return deny(DecisionTerminalState, "status %s is terminal", from)
	}
	if !workflow.HasEdge(from, to) {
		return deny(DecisionEdgeNotInGraph, "workflow v%d has no transition from %s to %s", workflow.Version(), from, to)
	}
	return TransitionDecision{
		Allowed: true,
		Code:    DecisionAllowed,
		Reason:  fmt.Sprintf("%s -> %s", from, to),
	}
}

// CheckResolution gates an actor-requested edge that closes a review stage:
// the current tally must resolve the stage to exactly that target. Other
// edges pass through.
func CheckResolution(workflow Workflow, from, to entities.RequestStatus, tally entities.VoteTallyResult) TransitionDecision {
	if !workflow.IsResolutionEdge(from, to) {
		return TransitionDecision{Allowed: true, Code: DecisionAllowed, Reason: fmt.Sprintf("%s -> %s", from, to)}
	}
	target, ok := workflow.ResolutionTarget(from, tally.Outcome)
	if !ok || target != to {
		return deny(DecisionNotBackedByTally,
			"tally for %s is %s (%d of %d active votes needed), it does not resolve to %s",
			from, tally.Outcome, tally.MajorityNeeded, tally.ActiveVoters, to)
	}
	return TransitionDecision{Allowed: true, Code: DecisionAllowed, Reason: fmt.Sprintf("%s -> %s by tally", from, to)}
}

func deny(code DecisionCode, format string, args ...any) TransitionDecision {
	return TransitionDecision{
		Allowed: false,
		Code:    code,
		Reason:  fmt.Sprintf(format, args...),
	}
}
