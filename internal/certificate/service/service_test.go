package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecocert/internal/certificate/models"
	"ecocert/internal/certificate/render"
	certificatestore "ecocert/internal/certificate/store/certificate"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/requestcontext"
)

type stubGate struct {
	unblocked bool
}

func (g *stubGate) IsUnblocked(context.Context, id.RequestID) (bool, error) {
	return g.unblocked, nil
}

func newService(opts ...Option) (*Service, *certificatestore.InMemoryStore) {
	store := certificatestore.NewInMemory()
	return New(store, render.NewHTMLRenderer(), 365*24*time.Hour, opts...), store
}

func authorityActor() id.Actor {
	return id.Actor{
		AccountID:  id.AccountID(uuid.New()),
		Role:       id.RoleAuthority,
		EmployeeID: id.EmployeeID(uuid.New()),
	}
}

func TestCertificateNumber(t *testing.T) {
	issuedAt := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	number := models.NumberFor(id.CertificateID(uuid.New()), issuedAt)
	assert.Regexp(t, regexp.MustCompile(`^DEEE-2026-[0-9A-F]{8}$`), number)
}

func TestIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a certificate with a one year validity", func(t *testing.T) {
		svc, _ := newService()
		now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

		cert, created, err := svc.Issue(requestcontext.WithTime(ctx, now), id.RequestID(uuid.New()), id.CompanyID(uuid.New()), "recycling")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, now, cert.IssueDate)
		assert.Equal(t, now.Add(365*24*time.Hour), cert.ExpiryDate)
		assert.Equal(t, models.StatusActive, cert.Status(now))
	})

	t.Run("second issuance returns the existing certificate", func(t *testing.T) {
		svc, _ := newService()
		requestID := id.RequestID(uuid.New())
		companyID := id.CompanyID(uuid.New())

		first, created, err := svc.Issue(ctx, requestID, companyID, "recycling")
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := svc.Issue(ctx, requestID, companyID, "recycling")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.Number, second.Number)
	})

	t.Run("gated issuance requires a settled payment", func(t *testing.T) {
		gate := &stubGate{unblocked: false}
		svc, _ := newService(WithPaymentGate(gate))
		requestID := id.RequestID(uuid.New())

		_, _, err := svc.Issue(ctx, requestID, id.CompanyID(uuid.New()), "recycling")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		gate.unblocked = true
		_, created, err := svc.Issue(ctx, requestID, id.CompanyID(uuid.New()), "recycling")
		require.NoError(t, err)
		assert.True(t, created)
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	issuedAt := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	svc, _ := newService()
	cert, _, err := svc.Issue(requestcontext.WithTime(ctx, issuedAt), id.RequestID(uuid.New()), id.CompanyID(uuid.New()), "reuse")
	require.NoError(t, err)

	t.Run("active within the validity window", func(t *testing.T) {
		result, err := svc.Verify(requestcontext.WithTime(ctx, issuedAt.Add(24*time.Hour)), cert.Number)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, result.Status)
		assert.Equal(t, "reuse", result.TreatmentType)
	})

	t.Run("expired after the validity window", func(t *testing.T) {
		result, err := svc.Verify(requestcontext.WithTime(ctx, issuedAt.Add(366*24*time.Hour)), cert.Number)
		require.NoError(t, err)
		assert.Equal(t, models.StatusExpired, result.Status)
	})

	t.Run("unknown number is not found", func(t *testing.T) {
		_, err := svc.Verify(ctx, "DEEE-2026-00000000")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("authority revokes and verification reports it", func(t *testing.T) {
		svc, _ := newService()
		cert, _, err := svc.Issue(ctx, id.RequestID(uuid.New()), id.CompanyID(uuid.New()), "recycling")
		require.NoError(t, err)

		revoked, err := svc.Revoke(ctx, authorityActor(), cert.ID)
		require.NoError(t, err)
		require.NotNil(t, revoked.RevokedAt)

		result, err := svc.Verify(ctx, cert.Number)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRevoked, result.Status)
	})

	t.Run("double revocation conflicts", func(t *testing.T) {
		svc, _ := newService()
		cert, _, err := svc.Issue(ctx, id.RequestID(uuid.New()), id.CompanyID(uuid.New()), "recycling")
		require.NoError(t, err)

		_, err = svc.Revoke(ctx, authorityActor(), cert.ID)
		require.NoError(t, err)
		_, err = svc.Revoke(ctx, authorityActor(), cert.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("employees cannot revoke", func(t *testing.T) {
		svc, _ := newService()
		cert, _, err := svc.Issue(ctx, id.RequestID(uuid.New()), id.CompanyID(uuid.New()), "recycling")
		require.NoError(t, err)

		employee := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEmployee, EmployeeID: id.EmployeeID(uuid.New())}
		_, err = svc.Revoke(ctx, employee, cert.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	companyID := id.CompanyID(uuid.New())
	owner := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEnterprise, CompanyID: companyID}

	cert, _, err := svc.Issue(ctx, id.RequestID(uuid.New()), companyID, "recycling")
	require.NoError(t, err)

	t.Run("owner renders the document", func(t *testing.T) {
		rendered, err := svc.Render(ctx, owner, cert.ID)
		require.NoError(t, err)
		assert.Contains(t, string(rendered), cert.Number)
		assert.Contains(t, string(rendered), "recycling")
	})

	t.Run("other companies cannot render", func(t *testing.T) {
		stranger := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEnterprise, CompanyID: id.CompanyID(uuid.New())}
		_, err := svc.Render(ctx, stranger, cert.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
