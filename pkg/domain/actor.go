package domain

import (
	dErrors "ecocert/pkg/domain-errors"
)

// Role partitions accounts into the three request-lifecycle participants
// plus an operator role for administrative surfaces.
type Role string

const (
	RoleEnterprise Role = "enterprise"
	RoleEmployee   Role = "employee"
	RoleAuthority  Role = "authority"
	RoleAdmin      Role = "admin"
)

func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleEnterprise, RoleEmployee, RoleAuthority, RoleAdmin:
		return Role(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", raw)
	}
}

// Actor is the authenticated principal attached to a request context.
// CompanyID is set only for enterprise actors, EmployeeID only for
// employee and authority actors.
type Actor struct {
	AccountID  AccountID
	Role       Role
	CompanyID  CompanyID
	EmployeeID EmployeeID
}

func (a Actor) IsEnterprise() bool { return a.Role == RoleEnterprise }
func (a Actor) IsReviewer() bool   { return a.Role == RoleEmployee || a.Role == RoleAuthority }
func (a Actor) IsAdmin() bool      { return a.Role == RoleAdmin }

// OwnsCompany reports whether the actor is the enterprise actor for the
// given company profile.
func (a Actor) OwnsCompany(id CompanyID) bool {
	return a.Role == RoleEnterprise && a.CompanyID == id && !id.IsNil()
}
