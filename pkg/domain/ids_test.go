package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ecocert/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRequestID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRequestID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRequestID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseRequestID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, RequestID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	requestID := RequestID(uuid.New())
	companyID := CompanyID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ RequestID = companyID   // compile error
	// var _ CompanyID = requestID   // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(requestID), uuid.UUID(companyID))
}

// TestParseID_SecurityInvariants validates security-critical parsing rules.
//
// Parsing must reject attack vectors at API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Attack vectors
		{"SQL injection attempt", "'; DROP TABLE requests;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400​-e29b-41d4-a716-446655440000", true},

		// Edge cases
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		// Valid
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequestID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types have identical
// parsing behavior. Inconsistent validation across ID types would create
// holes at trust boundaries.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	parsers := map[string]func(string) error{
		"account":     func(s string) error { _, err := ParseAccountID(s); return err },
		"company":     func(s string) error { _, err := ParseCompanyID(s); return err },
		"employee":    func(s string) error { _, err := ParseEmployeeID(s); return err },
		"request":     func(s string) error { _, err := ParseRequestID(s); return err },
		"certificate": func(s string) error { _, err := ParseCertificateID(s); return err },
		"payment":     func(s string) error { _, err := ParsePaymentID(s); return err },
		"document":    func(s string) error { _, err := ParseDocumentID(s); return err },
		"report":      func(s string) error { _, err := ParseReportID(s); return err },
	}

	t.Run("all accept valid UUID", func(t *testing.T) {
		for name, parse := range parsers {
			require.NoError(t, parse(validUUID), "parser %s", name)
		}
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			for name, parse := range parsers {
				require.Error(t, parse(input), "parser %s", name)
			}
		})
	}
}

func TestActor_OwnsCompany(t *testing.T) {
	companyID := CompanyID(uuid.New())

	t.Run("enterprise actor owns its own company", func(t *testing.T) {
		actor := Actor{AccountID: AccountID(uuid.New()), Role: RoleEnterprise, CompanyID: companyID}
		assert.True(t, actor.OwnsCompany(companyID))
	})

	t.Run("enterprise actor does not own another company", func(t *testing.T) {
		actor := Actor{AccountID: AccountID(uuid.New()), Role: RoleEnterprise, CompanyID: companyID}
		assert.False(t, actor.OwnsCompany(CompanyID(uuid.New())))
	})

	t.Run("reviewer never owns a company", func(t *testing.T) {
		actor := Actor{AccountID: AccountID(uuid.New()), Role: RoleEmployee, EmployeeID: EmployeeID(uuid.New())}
		assert.False(t, actor.OwnsCompany(companyID))
	})

	t.Run("nil company is never owned", func(t *testing.T) {
		actor := Actor{AccountID: AccountID(uuid.New()), Role: RoleEnterprise}
		assert.False(t, actor.OwnsCompany(CompanyID{}))
	})
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"enterprise", "employee", "authority", "admin"} {
		role, err := ParseRole(raw)
		require.NoError(t, err)
		assert.Equal(t, Role(raw), role)
	}

	_, err := ParseRole("superuser")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
