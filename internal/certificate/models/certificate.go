package models

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// Status is derived from the certificate's dates and revocation flag, never
// stored. Revocation wins over expiry.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Certificate is the durable proof of DEEE compliance issued for exactly one
// approved certification request.
type Certificate struct {
	ID            id.CertificateID
	Number        string
	RequestID     id.RequestID
	CompanyID     id.CompanyID
	TreatmentType string
	IssueDate     time.Time
	ExpiryDate    time.Time
	RevokedAt     *time.Time
	CreatedAt     time.Time
}

// NewCertificate issues a certificate valid from now for the given validity
// window. The public number is derived from the certificate ID so retries
// with a fresh ID produce a fresh number.
func NewCertificate(certificateID id.CertificateID, requestID id.RequestID, companyID id.CompanyID, treatmentType string, validity time.Duration, now time.Time) (*Certificate, error) {
	if validity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate validity must be positive")
	}
	return &Certificate{
		ID:            certificateID,
		Number:        NumberFor(certificateID, now),
		RequestID:     requestID,
		CompanyID:     companyID,
		TreatmentType: treatmentType,
		IssueDate:     now,
		ExpiryDate:    now.Add(validity),
		CreatedAt:     now,
	}, nil
}

// NumberFor builds the public certificate number: DEEE-<year>-<8 uppercase
// hex digits> taken from the certificate ID's leading bytes.
func NumberFor(certificateID id.CertificateID, issuedAt time.Time) string {
	u := uuid.UUID(certificateID)
	return fmt.Sprintf("DEEE-%d-%08X", issuedAt.Year(), binary.BigEndian.Uint32(u[:4]))
}

// Status derives the certificate state at the given instant.
func (c *Certificate) Status(now time.Time) Status {
	if c.RevokedAt != nil {
		return StatusRevoked
	}
	if now.After(c.ExpiryDate) {
		return StatusExpired
	}
	return StatusActive
}

// IsValid reports whether the certificate is usable as compliance proof.
func (c *Certificate) IsValid(now time.Time) bool {
	return c.Status(now) == StatusActive
}

// CanRevoke reports whether revocation is possible. Revoking twice is a
// conflict; revoking an expired certificate is allowed so audits can flag
// certificates that should never have been issued.
func (c *Certificate) CanRevoke() error {
	if c.RevokedAt != nil {
		return dErrors.New(dErrors.CodeConflict, "certificate is already revoked")
	}
	return nil
}

// ApplyRevocation marks the certificate revoked at now.
func (c *Certificate) ApplyRevocation(now time.Time) {
	revokedAt := now
	c.RevokedAt = &revokedAt
}

// Clone returns a copy safe for the caller to mutate.
func (c *Certificate) Clone() *Certificate {
	clone := *c
	if c.RevokedAt != nil {
		v := *c.RevokedAt
		clone.RevokedAt = &v
	}
	return &clone
}
