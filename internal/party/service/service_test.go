package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecocert/internal/party/models"
	"ecocert/internal/party/store/account"
	"ecocert/internal/party/store/company"
	"ecocert/internal/party/store/employee"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

func newTestService() *Service {
	return New(
		account.NewInMemoryStore(),
		company.NewInMemoryStore(),
		employee.NewInMemoryStore(),
	)
}

func TestRegisterAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account with hashed password", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)
		assert.Equal(t, "ops@acme.ma", acct.Email)
		assert.NotEqual(t, "s3cret-pass", acct.PasswordHash)
	})

	t.Run("rejects short password", func(t *testing.T) {
		svc := newTestService()
		_, err := svc.RegisterAccount(ctx, "ops@acme.ma", "short", id.RoleEnterprise)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		svc := newTestService()
		_, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)

		_, err = svc.RegisterAccount(ctx, "OPS@acme.ma", "other-pass1", id.RoleEmployee)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials resolve an actor", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)

		actor, err := svc.Authenticate(ctx, "ops@acme.ma", "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, actor.AccountID)
		assert.Equal(t, id.RoleEnterprise, actor.Role)
		assert.True(t, actor.CompanyID.IsNil(), "no profile before first submission")
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		svc := newTestService()
		_, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, "ops@acme.ma", "wrong-pass")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown email is unauthorized, not not-found", func(t *testing.T) {
		svc := newTestService()
		_, err := svc.Authenticate(ctx, "nobody@acme.ma", "whatever-pass")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestGetOrCreateCompanyProfile(t *testing.T) {
	ctx := context.Background()
	hints := models.ProfileHints{CompanyName: "Acme", ICE: "ICE1", RC: "RC1"}

	t.Run("creates profile on first call", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)
		actor := id.Actor{AccountID: acct.ID, Role: id.RoleEnterprise}

		profile, err := svc.GetOrCreateCompanyProfile(ctx, actor, hints)
		require.NoError(t, err)
		assert.Equal(t, "Acme", profile.BusinessName)
		assert.Equal(t, "ICE1", profile.ICE)
		assert.Equal(t, acct.ID, profile.AccountID)
	})

	t.Run("second call returns the same profile", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)
		actor := id.Actor{AccountID: acct.ID, Role: id.RoleEnterprise}

		first, err := svc.GetOrCreateCompanyProfile(ctx, actor, hints)
		require.NoError(t, err)
		second, err := svc.GetOrCreateCompanyProfile(ctx, actor, models.ProfileHints{CompanyName: "Other"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Acme", second.BusinessName, "hints do not overwrite an existing profile")
	})

	t.Run("concurrent first submissions converge on one profile", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)
		actor := id.Actor{AccountID: acct.ID, Role: id.RoleEnterprise}

		const workers = 8
		profiles := make([]*models.CompanyProfile, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := svc.GetOrCreateCompanyProfile(ctx, actor, hints)
				assert.NoError(t, err)
				profiles[i] = p
			}()
		}
		wg.Wait()

		for i := 1; i < workers; i++ {
			assert.Equal(t, profiles[0].ID, profiles[i].ID)
		}
	})

	t.Run("missing company name is a validation error", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)
		actor := id.Actor{AccountID: acct.ID, Role: id.RoleEnterprise}

		_, err = svc.GetOrCreateCompanyProfile(ctx, actor, models.ProfileHints{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("reviewer cannot have a company profile", func(t *testing.T) {
		svc := newTestService()
		actor := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEmployee}
		_, err := svc.GetOrCreateCompanyProfile(ctx, actor, hints)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestRegisterEmployee(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches profile and resolves into actor", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "rev@ecocert.ma", "s3cret-pass", id.RoleEmployee)
		require.NoError(t, err)

		emp, err := svc.RegisterEmployee(ctx, acct.ID, "Rania Reviewer", "Inspector")
		require.NoError(t, err)

		actor, err := svc.Authenticate(ctx, "rev@ecocert.ma", "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, emp.ID, actor.EmployeeID)
	})

	t.Run("blank name falls back to one derived from the email", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "youssef.alami@ecocert.ma", "s3cret-pass", id.RoleEmployee)
		require.NoError(t, err)

		emp, err := svc.RegisterEmployee(ctx, acct.ID, "  ", "Inspector")
		require.NoError(t, err)
		assert.Equal(t, "Youssef Alami", emp.FullName)
	})

	t.Run("enterprise account cannot get an employee profile", func(t *testing.T) {
		svc := newTestService()
		acct, err := svc.RegisterAccount(ctx, "ops@acme.ma", "s3cret-pass", id.RoleEnterprise)
		require.NoError(t, err)

		_, err = svc.RegisterEmployee(ctx, acct.ID, "Someone", "Inspector")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
