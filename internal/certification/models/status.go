package models

import (
	dErrors "ecocert/pkg/domain-errors"
)

// Status is the lifecycle state of a certification request.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

// statusTransitions is the single source of truth for the request state
// machine. No code path may set a status outside these edges.
//
// Certificate issuance does not change the status: an approved request
// stays approved and issuance is recorded in the history ledger.
var statusTransitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted, StatusCancelled},
	StatusSubmitted:   {StatusUnderReview, StatusCancelled},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:    {},
	StatusRejected:    {StatusSubmitted, StatusCancelled},
	StatusCancelled:   {},
}

// CanTransitionTo reports whether the state machine permits moving from s
// to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusCancelled:
		return Status(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown request status %q", raw)
	}
}

func (s Status) String() string {
	return string(s)
}
