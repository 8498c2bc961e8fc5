package services

import (
	"fmt"
	"sort"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
)

type Edge struct {
	From entities.RequestStatus
	To   entities.RequestStatus
}

// ReviewStageSpec describes one voting stage and the status each resolved
// outcome leads to.
type ReviewStageSpec struct {
	Status    entities.RequestStatus
	VoterRole entities.Role
	Approved  entities.RequestStatus
	Denied    entities.RequestStatus
	Returned  entities.RequestStatus
}

// GraphSpec is the injectable description of one workflow version. It is
// copied into an immutable Workflow by NewWorkflow.
type GraphSpec struct {
	Version     entities.WorkflowVersion
	Initial     entities.RequestStatus
	Submitted   entities.RequestStatus
	States      []entities.RequestStatus
	Terminal    []entities.RequestStatus
	Edges       []Edge
	RoleEdges   map[entities.Role][]Edge
	Stages      []ReviewStageSpec
	AutoAdvance []Edge
}

type statusSet map[entities.RequestStatus]struct{}
type edgeSet map[Edge]struct{}

// Workflow is one validated transition graph. The zero value is unusable;
// build it with NewWorkflow.
type Workflow struct {
	version     entities.WorkflowVersion
	initial     entities.RequestStatus
	submitted   entities.RequestStatus
	states      statusSet
	terminal    statusSet
	edges       edgeSet
	roleEdges   map[entities.Role]edgeSet
	stages      map[entities.RequestStatus]ReviewStageSpec
	autoAdvance map[entities.RequestStatus]entities.RequestStatus
}

func NewWorkflow(spec GraphSpec) (Workflow, error) {
	if spec.Version <= 0 {
		return Workflow{}, invalidDefinition("workflow version must be positive, got %d", spec.Version)
	}
	w := Workflow{
		version:     spec.Version,
		initial:     spec.Initial,
		submitted:   spec.Submitted,
		states:      make(statusSet, len(spec.States)),
		terminal:    make(statusSet, len(spec.Terminal)),
		edges:       make(edgeSet, len(spec.Edges)),
		roleEdges:   make(map[entities.Role]edgeSet, len(spec.RoleEdges)),
		stages:      make(map[entities.RequestStatus]ReviewStageSpec, len(spec.Stages)),
		autoAdvance: make(map[entities.RequestStatus]entities.RequestStatus, len(spec.AutoAdvance)),
	}
	for _, status := range spec.States {
		if status == "" {
			return Workflow{}, invalidDefinition("v%d: empty state name", spec.Version)
		}
		w.states[status] = struct{}{}
	}
	if !w.HasState(spec.Initial) {
		return Workflow{}, invalidDefinition("v%d: initial state %q is not declared", spec.Version, spec.Initial)
	}
	if !w.HasState(spec.Submitted) {
		return Workflow{}, invalidDefinition("v%d: submitted state %q is not declared", spec.Version, spec.Submitted)
	}
	for _, status := range spec.Terminal {
		if !w.HasState(status) {
			return Workflow{}, invalidDefinition("v%d: terminal state %q is not declared", spec.Version, status)
		}
		w.terminal[status] = struct{}{}
	}
	for _, edge := range spec.Edges {
		if !w.HasState(edge.From) || !w.HasState(edge.To) {
			return Workflow{}, invalidDefinition("v%d: edge %s -> %s uses an undeclared state", spec.Version, edge.From, edge.To)
		}
		if edge.From == edge.To {
			return Workflow{}, invalidDefinition("v%d: self edge on %q", spec.Version, edge.From)
		}
		if w.IsTerminal(edge.From) {
			return Workflow{}, invalidDefinition("v%d: terminal state %q has an outgoing edge", spec.Version, edge.From)
		}
		w.edges[edge] = struct{}{}
	}
	for role, edges := range spec.RoleEdges {
		if !role.Valid() {
			return Workflow{}, invalidDefinition("v%d: unknown role %q", spec.Version, role)
		}
		allowed := make(edgeSet, len(edges))
		for _, edge := range edges {
			if !w.HasEdge(edge.From, edge.To) {
				return Workflow{}, invalidDefinition("v%d: role %s allows %s -> %s which is not in the graph", spec.Version, role, edge.From, edge.To)
			}
			allowed[edge] = struct{}{}
		}
		w.roleEdges[role] = allowed
	}
	for _, stage := range spec.Stages {
		if !w.HasState(stage.Status) || w.IsTerminal(stage.Status) {
			return Workflow{}, invalidDefinition("v%d: review stage %q must be a declared non-terminal state", spec.Version, stage.Status)
		}
		if stage.VoterRole != entities.RoleReviewerStageA && stage.VoterRole != entities.RoleReviewerStageB {
			return Workflow{}, invalidDefinition("v%d: review stage %q needs a reviewer voter role, got %q", spec.Version, stage.Status, stage.VoterRole)
		}
		for _, target := range []entities.RequestStatus{stage.Approved, stage.Denied, stage.Returned} {
			if !w.HasEdge(stage.Status, target) {
				return Workflow{}, invalidDefinition("v%d: review stage %q resolves to %q which is not an edge", spec.Version, stage.Status, target)
			}
		}
		w.stages[stage.Status] = stage
	}
	for _, edge := range spec.AutoAdvance {
		if !w.RoleAllows(entities.RoleSystem, edge.From, edge.To) {
			return Workflow{}, invalidDefinition("v%d: auto advance %s -> %s is not a system edge", spec.Version, edge.From, edge.To)
		}
		w.autoAdvance[edge.From] = edge.To
	}
	for start := range w.autoAdvance {
		current := start
		for hops := 0; ; hops++ {
			next, ok := w.autoAdvance[current]
			if !ok {
				break
			}
			if hops >= len(w.autoAdvance) {
				return Workflow{}, invalidDefinition("v%d: auto advance from %q never settles", spec.Version, start)
			}
			current = next
		}
	}
	return w, nil
}

func (w Workflow) Version() entities.WorkflowVersion { return w.version }

func (w Workflow) Initial() entities.RequestStatus { return w.initial }

// SubmittedStatus is the status whose arrival announces a new submission.
func (w Workflow) SubmittedStatus() entities.RequestStatus { return w.submitted }

func (w Workflow) HasState(status entities.RequestStatus) bool {
	_, ok := w.states[status]
	return ok
}

func (w Workflow) IsTerminal(status entities.RequestStatus) bool {
	_, ok := w.terminal[status]
	return ok
}

func (w Workflow) HasEdge(from, to entities.RequestStatus) bool {
	_, ok := w.edges[Edge{From: from, To: to}]
	return ok
}

func (w Workflow) RoleAllows(role entities.Role, from, to entities.RequestStatus) bool {
	allowed, ok := w.roleEdges[role]
	if !ok {
		return false
	}
	_, ok = allowed[Edge{From: from, To: to}]
	return ok
}

func (w Workflow) Stage(status entities.RequestStatus) (ReviewStageSpec, bool) {
	stage, ok := w.stages[status]
	return stage, ok
}

func (w Workflow) IsReviewStatus(status entities.RequestStatus) bool {
	_, ok := w.stages[status]
	return ok
}

// ResolutionTarget maps a resolved tally outcome of a review stage to the
// status the stage moves to.
func (w Workflow) ResolutionTarget(status entities.RequestStatus, outcome entities.TallyOutcome) (entities.RequestStatus, bool) {
	stage, ok := w.stages[status]
	if !ok {
		return "", false
	}
	switch outcome {
	case entities.TallyOutcomeApproved:
		return stage.Approved, true
	case entities.TallyOutcomeDenied:
		return stage.Denied, true
	case entities.TallyOutcomeReturned:
		return stage.Returned, true
	default:
		return "", false
	}
}

// IsResolutionEdge reports whether from -> to closes a review stage.
func (w Workflow) IsResolutionEdge(from, to entities.RequestStatus) bool {
	stage, ok := w.stages[from]
	if !ok {
		return false
	}
	return to == stage.Approved || to == stage.Denied || to == stage.Returned
}

func (w Workflow) ReviewStatuses() []entities.RequestStatus {
	items := make([]entities.RequestStatus, 0, len(w.stages))
	for status := range w.stages {
		items = append(items, status)
	}
	sortStatuses(items)
	return items
}

// AutoApprovalTarget returns the approved status of a review stage when the
// system actor may apply it on deadline expiry.
func (w Workflow) AutoApprovalTarget(status entities.RequestStatus) (entities.RequestStatus, bool) {
	stage, ok := w.stages[status]
	if !ok || !w.RoleAllows(entities.RoleSystem, status, stage.Approved) {
		return "", false
	}
	return stage.Approved, true
}

// AutoApprovalStatuses lists review statuses the deadline sweep may resolve.
func (w Workflow) AutoApprovalStatuses() []entities.RequestStatus {
	items := make([]entities.RequestStatus, 0, len(w.stages))
	for status := range w.stages {
		if _, ok := w.AutoApprovalTarget(status); ok {
			items = append(items, status)
		}
	}
	sortStatuses(items)
	return items
}

// AutoAdvanceStatuses lists statuses the system leaves on its own.
func (w Workflow) AutoAdvanceStatuses() []entities.RequestStatus {
	items := make([]entities.RequestStatus, 0, len(w.autoAdvance))
	for status := range w.autoAdvance {
		items = append(items, status)
	}
	sortStatuses(items)
	return items
}

func (w Workflow) AutoAdvanceTarget(status entities.RequestStatus) (entities.RequestStatus, bool) {
	target, ok := w.autoAdvance[status]
	return target, ok
}

func (w Workflow) States() []entities.RequestStatus {
	items := make([]entities.RequestStatus, 0, len(w.states))
	for status := range w.states {
		items = append(items, status)
	}
	sortStatuses(items)
	return items
}

// DefaultGraphSpecs returns the built-in legacy and multi-stage graphs.
func DefaultGraphSpecs() []GraphSpec {
	return []GraphSpec{legacyGraphSpec(), multiStageGraphSpec()}
}

func legacyGraphSpec() GraphSpec {
	open := Edge{From: entities.RequestStatusPending, To: entities.RequestStatusInReview}
	approve := Edge{From: entities.RequestStatusInReview, To: entities.RequestStatusApproved}
	reject := Edge{From: entities.RequestStatusInReview, To: entities.RequestStatusRejected}
	revise := Edge{From: entities.RequestStatusInReview, To: entities.RequestStatusPending}
	cancel := Edge{From: entities.RequestStatusPending, To: entities.RequestStatusCancelled}

	return GraphSpec{
		Version:   entities.WorkflowVersionLegacy,
		Initial:   entities.RequestStatusPending,
		Submitted: entities.RequestStatusPending,
		States: []entities.RequestStatus{
			entities.RequestStatusPending,
			entities.RequestStatusInReview,
			entities.RequestStatusApproved,
			entities.RequestStatusRejected,
			entities.RequestStatusCancelled,
		},
		Terminal: []entities.RequestStatus{
			entities.RequestStatusApproved,
			entities.RequestStatusRejected,
			entities.RequestStatusCancelled,
		},
		Edges: []Edge{open, approve, reject, revise, cancel},
		RoleEdges: map[entities.Role][]Edge{
			entities.RoleOwner:          {cancel},
			entities.RoleReviewerStageA: {open, approve, reject, revise},
			entities.RoleSystem:         {approve},
		},
		Stages: []ReviewStageSpec{{
			Status:    entities.RequestStatusInReview,
			VoterRole: entities.RoleReviewerStageA,
			Approved:  entities.RequestStatusApproved,
			Denied:    entities.RequestStatusRejected,
			Returned:  entities.RequestStatusPending,
		}},
	}
}

func multiStageGraphSpec() GraphSpec {
	submit := Edge{From: entities.RequestStatusDraft, To: entities.RequestStatusSubmitted}
	resubmitA := Edge{From: entities.RequestStatusStageAReturned, To: entities.RequestStatusSubmitted}
	resubmitB := Edge{From: entities.RequestStatusStageBReturned, To: entities.RequestStatusSubmitted}
	cancelDraft := Edge{From: entities.RequestStatusDraft, To: entities.RequestStatusCancelled}
	cancelSubmitted := Edge{From: entities.RequestStatusSubmitted, To: entities.RequestStatusCancelled}
	openA := Edge{From: entities.RequestStatusSubmitted, To: entities.RequestStatusStageAReview}
	approveA := Edge{From: entities.RequestStatusStageAReview, To: entities.RequestStatusStageAApproved}
	denyA := Edge{From: entities.RequestStatusStageAReview, To: entities.RequestStatusStageADenied}
	returnA := Edge{From: entities.RequestStatusStageAReview, To: entities.RequestStatusStageAReturned}
	advance := Edge{From: entities.RequestStatusStageAApproved, To: entities.RequestStatusStageBReview}
	approveB := Edge{From: entities.RequestStatusStageBReview, To: entities.RequestStatusStageBApproved}
	denyB := Edge{From: entities.RequestStatusStageBReview, To: entities.RequestStatusStageBDenied}
	returnB := Edge{From: entities.RequestStatusStageBReview, To: entities.RequestStatusStageBReturned}

	return GraphSpec{
		Version:   entities.WorkflowVersionMultiStage,
		Initial:   entities.RequestStatusDraft,
		Submitted: entities.RequestStatusSubmitted,
		States: []entities.RequestStatus{
			entities.RequestStatusDraft,
			entities.RequestStatusSubmitted,
			entities.RequestStatusStageAReview,
			entities.RequestStatusStageAApproved,
			entities.RequestStatusStageADenied,
			entities.RequestStatusStageAReturned,
			entities.RequestStatusStageBReview,
			entities.RequestStatusStageBApproved,
			entities.RequestStatusStageBDenied,
			entities.RequestStatusStageBReturned,
			entities.RequestStatusCancelled,
		},
		Terminal: []entities.RequestStatus{
			entities.RequestStatusStageADenied,
			entities.RequestStatusStageBApproved,
			entities.RequestStatusStageBDenied,
			entities.RequestStatusCancelled,
		},
		Edges: []Edge{
			submit, resubmitA, resubmitB, cancelDraft, cancelSubmitted,
			openA, approveA, denyA, returnA, advance, approveB, denyB, returnB,
		},
		RoleEdges: map[entities.Role][]Edge{
			entities.RoleOwner:          {submit, resubmitA, resubmitB, cancelDraft, cancelSubmitted},
			entities.RoleReviewerStageA: {openA, approveA, denyA, returnA},
			entities.RoleReviewerStageB: {approveB, denyB, returnB},
			entities.RoleSystem:         {approveA, approveB, advance},
		},
		Stages: []ReviewStageSpec{
			{
				Status:    entities.RequestStatusStageAReview,
				VoterRole: entities.RoleReviewerStageA,
				Approved:  entities.RequestStatusStageAApproved,
				Denied:    entities.RequestStatusStageADenied,
				Returned:  entities.RequestStatusStageAReturned,
			},
			{
				Status:    entities.RequestStatusStageBReview,
				VoterRole: entities.RoleReviewerStageB,
				Approved:  entities.RequestStatusStageBApproved,
				Denied:    entities.RequestStatusStageBDenied,
				Returned:  entities.RequestStatusStageBReturned,
			},
		},
		AutoAdvance: []Edge{advance},
	}
}

func invalidDefinition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domainerrors.ErrInvalidWorkflowDefinition, fmt.Sprintf(format, args...))
}

func sortStatuses(items []entities.RequestStatus) {
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
}
