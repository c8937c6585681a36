// Package notification captures workflow lifecycle events and fans them out
// to interested parties. Events are transport-agnostic so stores and sinks
// can be swapped.
package notification

import (
	"context"
	"time"

	id "ecocert/pkg/domain"
)

// EventCategory classifies workflow events by their primary audience.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance.
	// These require durable storage and long retention.
	// Examples: validation decisions, certificate issuance and revocation.
	CategoryCompliance EventCategory = "compliance"

	// CategoryBilling covers payment lifecycle events feeding the finance
	// pipeline.
	CategoryBilling EventCategory = "billing"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from workflow logic to notify parties of request state
// changes. RequestID is the aggregate key so sinks keep per-request ordering.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	RequestID id.RequestID
	CompanyID id.CompanyID
	Action    string
	Reason    string
	// ActorID tracks who performed the action: the enterprise account for
	// submissions, the reviewer for validation decisions.
	ActorID string
	// CorrelationID carries the HTTP request ID for tracing.
	CorrelationID string
}

type WorkflowEvent string

const (
	// Request lifecycle events
	EventRequestCreated     WorkflowEvent = "request_created"
	EventRequestSubmitted   WorkflowEvent = "request_submitted"
	EventRequestAssigned    WorkflowEvent = "request_assigned"
	EventReviewStarted      WorkflowEvent = "review_started"
	EventRequestApproved    WorkflowEvent = "request_approved"
	EventRequestRejected    WorkflowEvent = "request_rejected"
	EventRequestResubmitted WorkflowEvent = "request_resubmitted"
	EventRequestCancelled   WorkflowEvent = "request_cancelled"
	EventDocumentAttached   WorkflowEvent = "document_attached"

	// Payment events
	EventPaymentRequired WorkflowEvent = "payment_required"
	EventPaymentReceived WorkflowEvent = "payment_received"
	EventPaymentRefunded WorkflowEvent = "payment_refunded"

	// Certificate events
	EventCertificateIssued  WorkflowEvent = "certificate_issued"
	EventCertificateRevoked WorkflowEvent = "certificate_revoked"
)

// eventCategories maps each workflow event to its category.
var eventCategories = map[WorkflowEvent]EventCategory{
	// Compliance events - validation decisions and certificate lifecycle
	EventRequestApproved:    CategoryCompliance,
	EventRequestRejected:    CategoryCompliance,
	EventCertificateIssued:  CategoryCompliance,
	EventCertificateRevoked: CategoryCompliance,

	// Billing events - feed the finance pipeline
	EventPaymentRequired: CategoryBilling,
	EventPaymentReceived: CategoryBilling,
	EventPaymentRefunded: CategoryBilling,

	// Operations events - routine activity, can be sampled
	EventRequestCreated:     CategoryOperations,
	EventRequestSubmitted:   CategoryOperations,
	EventRequestAssigned:    CategoryOperations,
	EventReviewStarted:      CategoryOperations,
	EventRequestResubmitted: CategoryOperations,
	EventRequestCancelled:   CategoryOperations,
	EventDocumentAttached:   CategoryOperations,
}

// Category returns the EventCategory for this workflow event.
// Unknown events default to CategoryOperations.
func (e WorkflowEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists workflow events for later retrieval.
type Store interface {
	Append(ctx context.Context, event Event) error
}
