package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)
var enterpriseActor = domain.Actor{
	AccountID: domain.AccountID(uuid.New()),
	Role:      domain.RoleEnterprise,
	CompanyID: domain.CompanyID(uuid.New()),
}
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(enterpriseActor, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, enterpriseActor.AccountID.String(), claims.AccountID)
	assert.Equal(t, string(domain.RoleEnterprise), claims.Role)
	assert.Equal(t, enterpriseActor.CompanyID.String(), claims.CompanyID)
	assert.Empty(t, claims.EmployeeID)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateAccessToken_ReviewerClaims(t *testing.T) {
	reviewer := domain.Actor{
		AccountID:  domain.AccountID(uuid.New()),
		Role:       domain.RoleEmployee,
		EmployeeID: domain.EmployeeID(uuid.New()),
	}
	token, err := jwtService.GenerateAccessToken(reviewer, expiresIn)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoleEmployee), claims.Role)
	assert.Equal(t, reviewer.EmployeeID.String(), claims.EmployeeID)
	assert.Empty(t, claims.CompanyID)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	expiresIn := -time.Hour // Expired token

	token, err := jwtService.GenerateAccessToken(enterpriseActor, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("other-key", "test-issuer", "test-audience")
	token, err := other.GenerateAccessToken(enterpriseActor, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_AdapterResolvesActor(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)
	token, err := jwtService.GenerateAccessToken(enterpriseActor, expiresIn)
	require.NoError(t, err)

	mwClaims, err := adapter.ValidateToken(token)
	require.NoError(t, err)

	actor, err := mwClaims.Actor()
	require.NoError(t, err)
	assert.Equal(t, enterpriseActor, actor)
}
