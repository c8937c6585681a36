// Package domain holds identifier types and the actor model shared across
// bounded contexts. Typed UUIDs make cross-entity ID mixups a compile error.
package domain

import (
	"github.com/google/uuid"

	dErrors "ecocert/pkg/domain-errors"
)

type (
	// AccountID identifies an authenticated account (any role).
	AccountID uuid.UUID
	// CompanyID identifies an enterprise company profile.
	CompanyID uuid.UUID
	// EmployeeID identifies a certification-team employee profile.
	EmployeeID uuid.UUID
	// RequestID identifies a certification request.
	RequestID uuid.UUID
	// CertificateID identifies an issued certificate.
	CertificateID uuid.UUID
	// PaymentID identifies a certification payment.
	PaymentID uuid.UUID
	// DocumentID identifies a supporting document.
	DocumentID uuid.UUID
	// ReportID identifies a generated audit report.
	ReportID uuid.UUID
	// FormSubmissionID identifies a structured form submission on a request.
	FormSubmissionID uuid.UUID
)

func (id AccountID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EmployeeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func (id FormSubmissionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id AccountID) String() string     { return uuid.UUID(id).String() }
func (id CompanyID) String() string     { return uuid.UUID(id).String() }
func (id EmployeeID) String() string    { return uuid.UUID(id).String() }
func (id RequestID) String() string     { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id PaymentID) String() string     { return uuid.UUID(id).String() }
func (id DocumentID) String() string    { return uuid.UUID(id).String() }
func (id ReportID) String() string      { return uuid.UUID(id).String() }

func (id FormSubmissionID) String() string { return uuid.UUID(id).String() }

// parseUUID enforces the parsing invariant shared by every ID type:
// IDs must be valid, non-empty, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", kind)
	}
	return u, nil
}

func ParseAccountID(raw string) (AccountID, error) {
	u, err := parseUUID(raw, "account ID")
	return AccountID(u), err
}

func ParseCompanyID(raw string) (CompanyID, error) {
	u, err := parseUUID(raw, "company ID")
	return CompanyID(u), err
}

func ParseEmployeeID(raw string) (EmployeeID, error) {
	u, err := parseUUID(raw, "employee ID")
	return EmployeeID(u), err
}

func ParseRequestID(raw string) (RequestID, error) {
	u, err := parseUUID(raw, "request ID")
	return RequestID(u), err
}

func ParseCertificateID(raw string) (CertificateID, error) {
	u, err := parseUUID(raw, "certificate ID")
	return CertificateID(u), err
}

func ParsePaymentID(raw string) (PaymentID, error) {
	u, err := parseUUID(raw, "payment ID")
	return PaymentID(u), err
}

func ParseDocumentID(raw string) (DocumentID, error) {
	u, err := parseUUID(raw, "document ID")
	return DocumentID(u), err
}

func ParseReportID(raw string) (ReportID, error) {
	u, err := parseUUID(raw, "report ID")
	return ReportID(u), err
}

func ParseFormSubmissionID(raw string) (FormSubmissionID, error) {
	u, err := parseUUID(raw, "form submission ID")
	return FormSubmissionID(u), err
}
