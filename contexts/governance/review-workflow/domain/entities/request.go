package entities

import (
	"strings"
	"time"
)

type WorkflowVersion int

const (
	WorkflowVersionLegacy     WorkflowVersion = 1
	WorkflowVersionMultiStage WorkflowVersion = 2
)

type RequestStatus string

// Legacy single-reviewer statuses.
const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusInReview RequestStatus = "in_review"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Multi-stage statuses.
const (
	RequestStatusDraft          RequestStatus = "draft"
	RequestStatusSubmitted      RequestStatus = "submitted"
	RequestStatusStageAReview   RequestStatus = "stage_a_review"
	RequestStatusStageAApproved RequestStatus = "stage_a_approved"
	RequestStatusStageADenied   RequestStatus = "stage_a_denied"
	RequestStatusStageAReturned RequestStatus = "stage_a_returned"
	RequestStatusStageBReview   RequestStatus = "stage_b_review"
	RequestStatusStageBApproved RequestStatus = "stage_b_approved"
	RequestStatusStageBDenied   RequestStatus = "stage_b_denied"
	RequestStatusStageBReturned RequestStatus = "stage_b_returned"
)

// RequestStatusCancelled is shared by both workflow versions.
const RequestStatusCancelled RequestStatus = "cancelled"

// Request is the architectural-review aggregate. Status only changes through
// validated compare-and-swap transitions.
type Request struct {
	RequestID          string
	OwnerID            string
	Description        string
	Status             RequestStatus
	WorkflowVersion    WorkflowVersion
	Stage              string
	ReviewDeadline     *time.Time
	AutoApprovedReason string
	ReviewCycle        int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r Request) ValidateCreate() bool {
	return strings.TrimSpace(r.RequestID) != "" &&
		strings.TrimSpace(r.OwnerID) != "" &&
		strings.TrimSpace(r.Description) != "" &&
		r.WorkflowVersion > 0
}

// StageFor returns the stage label stored next to the status. Multi-stage
// requests mirror their status; legacy requests carry no stage.
func StageFor(version WorkflowVersion, status RequestStatus) string {
	if version == WorkflowVersionMultiStage {
		return string(status)
	}
	return ""
}
