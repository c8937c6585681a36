package models

import (
	"strings"
	"time"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// RequiredSubmissionKeys are the submitted_data fields every request must
// carry before it can enter review.
var RequiredSubmissionKeys = []string{"companyName", "ice", "rc", "email"}

// Request is a DEEE certification request owned by one company. All status
// changes go through the Can*/Apply* pairs so the transition table in
// status.go is enforced in exactly one place.
type Request struct {
	ID             id.RequestID
	CompanyID      id.CompanyID
	TreatmentType  string
	Status         Status
	SubmittedData  map[string]any
	SubmissionDate time.Time

	// AssignedTo is the reviewer currently owning the request, nil while
	// unclaimed. ValidatedBy and ReviewedBy record who decided.
	AssignedTo  *id.EmployeeID
	ValidatedBy *id.EmployeeID
	ReviewedBy  *id.EmployeeID

	// MainDocumentURL is the primary supporting document attached at
	// submission time, empty when none was provided.
	MainDocumentURL string

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRequest creates a request directly in the submitted state. Drafts only
// exist for requests created without complete data.
func NewRequest(requestID id.RequestID, companyID id.CompanyID, treatmentType string, data map[string]any, now time.Time) (*Request, error) {
	treatmentType = strings.TrimSpace(treatmentType)
	if treatmentType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "treatmentType is required")
	}
	if err := validateSubmissionData(data); err != nil {
		return nil, err
	}
	return &Request{
		ID:             requestID,
		CompanyID:      companyID,
		TreatmentType:  treatmentType,
		Status:         StatusSubmitted,
		SubmittedData:  cloneData(data),
		SubmissionDate: now,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func validateSubmissionData(data map[string]any) error {
	var missing []string
	for _, key := range RequiredSubmissionKeys {
		value, ok := data[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeValidation, "submittedData is missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CanClaim reports whether employeeID may take review ownership. A request
// already owned by another reviewer cannot be claimed.
func (r *Request) CanClaim(employeeID id.EmployeeID) error {
	if r.Status != StatusSubmitted && r.Status != StatusUnderReview {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %q cannot be assigned", r.Status)
	}
	if r.AssignedTo != nil && *r.AssignedTo != employeeID {
		return dErrors.New(dErrors.CodeConflict, "request is already assigned to another reviewer")
	}
	return nil
}

// ApplyClaim assigns the request to employeeID and moves it under review.
func (r *Request) ApplyClaim(employeeID id.EmployeeID, now time.Time) {
	r.Status = StatusUnderReview
	r.AssignedTo = &employeeID
	r.UpdatedAt = now
}

// CanDecide reports whether employeeID may approve or reject the request.
// The caller decides; the guard is shared because both decisions require
// review ownership. allowClaim permits deciding on an unclaimed request,
// which the service turns into a claim-then-decide in one step.
func (r *Request) CanDecide(employeeID id.EmployeeID, allowClaim bool) error {
	if allowClaim {
		return r.CanClaim(employeeID)
	}
	if r.Status != StatusUnderReview {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %q cannot be decided", r.Status)
	}
	if r.AssignedTo == nil || *r.AssignedTo != employeeID {
		return dErrors.New(dErrors.CodeForbidden, "request is assigned to another reviewer")
	}
	return nil
}

// ApplyApproval marks the request approved by employeeID.
func (r *Request) ApplyApproval(employeeID id.EmployeeID, now time.Time) {
	r.Status = StatusApproved
	r.ValidatedBy = &employeeID
	r.ReviewedBy = &employeeID
	r.UpdatedAt = now
}

// ApplyRejection marks the request rejected by employeeID. The rejection
// reason lives in the RejectionReport, not on the request itself.
func (r *Request) ApplyRejection(employeeID id.EmployeeID, now time.Time) {
	r.Status = StatusRejected
	r.ReviewedBy = &employeeID
	r.UpdatedAt = now
}

// CanResubmit reports whether the owner may send the request back into the
// queue after a rejection.
func (r *Request) CanResubmit() error {
	if r.Status != StatusRejected {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "only rejected requests can be resubmitted, current status is %q", r.Status)
	}
	return nil
}

// ApplyResubmission merges newData over the existing submitted data and
// returns the request to the submitted state. Keys absent from newData keep
// their previous values; the review assignment is cleared so any reviewer
// can pick it up again.
func (r *Request) ApplyResubmission(newData map[string]any, now time.Time) {
	merged := cloneData(r.SubmittedData)
	for key, value := range newData {
		merged[key] = value
	}
	r.SubmittedData = merged
	r.Status = StatusSubmitted
	r.SubmissionDate = now
	r.AssignedTo = nil
	r.ReviewedBy = nil
	r.UpdatedAt = now
}

// CanCancel reports whether the request may be withdrawn. Cancellation is a
// soft delete: the row stays for audit but accepts no further transitions.
func (r *Request) CanCancel() error {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %q cannot be cancelled", r.Status)
	}
	return nil
}

// ApplyCancellation withdraws the request.
func (r *Request) ApplyCancellation(now time.Time) {
	r.Status = StatusCancelled
	r.UpdatedAt = now
}

// CanIssueCertificate reports whether the request is eligible for
// certificate issuance.
func (r *Request) CanIssueCertificate() error {
	if r.Status != StatusApproved {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "certificates can only be issued for approved requests, current status is %q", r.Status)
	}
	return nil
}

// Clone returns a deep copy safe for the caller to mutate.
func (r *Request) Clone() *Request {
	clone := *r
	clone.SubmittedData = cloneData(r.SubmittedData)
	if r.AssignedTo != nil {
		v := *r.AssignedTo
		clone.AssignedTo = &v
	}
	if r.ValidatedBy != nil {
		v := *r.ValidatedBy
		clone.ValidatedBy = &v
	}
	if r.ReviewedBy != nil {
		v := *r.ReviewedBy
		clone.ReviewedBy = &v
	}
	return &clone
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	return out
}
