package models

import (
	"time"

	"github.com/google/uuid"

	id "ecocert/pkg/domain"
)

// HistoryAction identifies what happened to a request. The history ledger is
// append-only: every committed transition writes exactly one entry, and
// certificate issuance is recorded here rather than as a status.
type HistoryAction string

const (
	ActionCreated           HistoryAction = "created"
	ActionSubmitted         HistoryAction = "submitted"
	ActionAssigned          HistoryAction = "assigned"
	ActionUnderReview       HistoryAction = "under_review"
	ActionPaymentRequired   HistoryAction = "payment_required"
	ActionPaymentReceived   HistoryAction = "payment_received"
	ActionApproved          HistoryAction = "approved"
	ActionRejected          HistoryAction = "rejected"
	ActionCertificateIssued HistoryAction = "certificate_issued"
	ActionCancelled         HistoryAction = "cancelled"
)

// HistoryEntry is one line of the request ledger. PerformedBy is nil for
// entries the system wrote on its own (payment settlement, scheduled jobs).
type HistoryEntry struct {
	ID          uuid.UUID
	RequestID   id.RequestID
	Action      HistoryAction
	Description string
	PerformedBy *id.AccountID
	Timestamp   time.Time
	Extra       map[string]any
}

// NewHistoryEntry builds a ledger entry stamped at now.
func NewHistoryEntry(requestID id.RequestID, action HistoryAction, description string, performedBy *id.AccountID, now time.Time) HistoryEntry {
	return HistoryEntry{
		ID:          uuid.New(),
		RequestID:   requestID,
		Action:      action,
		Description: description,
		PerformedBy: performedBy,
		Timestamp:   now,
	}
}

// WithExtra attaches structured detail to the entry.
func (e HistoryEntry) WithExtra(extra map[string]any) HistoryEntry {
	e.Extra = extra
	return e
}
