package errors

import "errors"

var (
	ErrRequestNotFound           = errors.New("review request not found")
	ErrInvalidRequestInput       = errors.New("invalid review request input")
	ErrDuplicateRequest          = errors.New("duplicate review request")
	ErrInvalidVote               = errors.New("invalid vote input")
	ErrDuplicateVote             = errors.New("voter already cast a vote for this stage")
	ErrVotingClosed              = errors.New("request is not open for voting")
	ErrUnauthorizedActor         = errors.New("actor is not authorized")
	ErrUnknownActor              = errors.New("actor is not known to the directory")
	ErrUnknownWorkflowVersion    = errors.New("unknown workflow version")
	ErrInvalidWorkflowDefinition = errors.New("invalid workflow definition")
	ErrConflict                  = errors.New("review workflow conflict")
	ErrIdempotencyConflict       = errors.New("idempotency key conflict")
)
