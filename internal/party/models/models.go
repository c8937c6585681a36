// Package models holds the party registry aggregates: accounts and the
// role-specific profiles attached to them.
package models

import (
	"strings"
	"time"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// Account is the authentication aggregate. Exactly one profile is attached,
// determined by Role.
type Account struct {
	ID           id.AccountID `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         id.Role      `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func NewAccount(accountID id.AccountID, email, passwordHash string, role id.Role, now time.Time) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash cannot be empty")
	}
	return &Account{
		ID:           accountID,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CompanyProfile identifies an enterprise submitting certification requests.
//
// Invariants:
//   - BusinessName is non-empty and at most 200 characters
//   - Exactly one profile per enterprise account
type CompanyProfile struct {
	ID                  id.CompanyID `json:"id"`
	AccountID           id.AccountID `json:"account_id"`
	BusinessName        string       `json:"business_name"`
	ICE                 string       `json:"ice"`
	RC                  string       `json:"rc"`
	LegalRepresentative string       `json:"legal_representative"`
	Address             string       `json:"address"`
	Phone               string       `json:"phone"`
	Description         string       `json:"description"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func NewCompanyProfile(companyID id.CompanyID, accountID id.AccountID, hints ProfileHints, now time.Time) (*CompanyProfile, error) {
	name := strings.TrimSpace(hints.CompanyName)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company name cannot be empty")
	}
	if len(name) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company name must be 200 characters or less")
	}
	return &CompanyProfile{
		ID:                  companyID,
		AccountID:           accountID,
		BusinessName:        name,
		ICE:                 strings.TrimSpace(hints.ICE),
		RC:                  strings.TrimSpace(hints.RC),
		LegalRepresentative: strings.TrimSpace(hints.LegalRepresentative),
		Address:             strings.TrimSpace(hints.Address),
		Phone:               strings.TrimSpace(hints.Phone),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// ProfileHints carries the company fields extracted from a submission's
// form data, used when a profile has to be created on first submission.
type ProfileHints struct {
	CompanyName         string
	ICE                 string
	RC                  string
	LegalRepresentative string
	Address             string
	Phone               string
}

// Employee is a certification-team reviewer profile.
type Employee struct {
	ID         id.EmployeeID `json:"id"`
	AccountID  id.AccountID  `json:"account_id"`
	FullName   string        `json:"full_name"`
	Position   string        `json:"position"`
	HireDate   time.Time     `json:"hire_date"`
	Supervisor string        `json:"supervisor,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Authority is a regulatory auditor profile with read-only access to
// outcomes.
type Authority struct {
	ID           id.EmployeeID `json:"id"`
	AccountID    id.AccountID  `json:"account_id"`
	Organization string        `json:"organization"`
	Sector       string        `json:"sector"`
	Region       string        `json:"region"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Administrator configures fee and validation policy.
type Administrator struct {
	AccountID  id.AccountID `json:"account_id"`
	Level      string       `json:"level"`
	Department string       `json:"department"`
	CreatedAt  time.Time    `json:"created_at"`
}
