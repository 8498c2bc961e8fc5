package entities

import "time"

type NotificationType string

const (
	NotificationSubmitted       NotificationType = "submitted"
	NotificationStageOpened     NotificationType = "stage_opened"
	NotificationVoteCast        NotificationType = "vote_cast"
	NotificationDecisionReached NotificationType = "decision_reached"
	NotificationDeadlineWarning NotificationType = "deadline_warning"
	NotificationAutoApproved    NotificationType = "auto_approved"
)

// DebounceRecord remembers when a notification was last sent for a request.
// NotificationType is scoped by the caller, e.g. "vote_cast:stage_a_review"
// or "deadline_warning:168h".
type DebounceRecord struct {
	RequestID        string
	NotificationType string
	LastSentAt       time.Time
}

// Notification is one delivery handed to the rendering/transport gateway.
type Notification struct {
	Recipient string
	Type      NotificationType
	RequestID string
	Stage     RequestStatus
	Context   map[string]string
}
