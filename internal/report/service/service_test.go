package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certification "ecocert/internal/certification/models"
	historystore "ecocert/internal/certification/store/history"
	requeststore "ecocert/internal/certification/store/request"
	certificatemodels "ecocert/internal/certificate/models"
	certificatestore "ecocert/internal/certificate/store/certificate"
	paymentmodels "ecocert/internal/payment/models"
	paymentstore "ecocert/internal/payment/store/payment"
	reportstore "ecocert/internal/report/store/report"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

type reportFixture struct {
	svc     *Service
	company id.CompanyID
}

func reviewer() id.Actor {
	return id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEmployee, EmployeeID: id.EmployeeID(uuid.New())}
}

// newReportFixture seeds one company with two approved requests, one
// rejected request, a certificate, a settled payment and a pending one.
func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	requests := requeststore.NewInMemory()
	certificates := certificatestore.NewInMemory()
	payments := paymentstore.NewInMemory()
	history := historystore.NewInMemory()
	reports := reportstore.NewInMemory()

	company := id.CompanyID(uuid.New())
	data := map[string]any{"companyName": "Acme", "ice": "001", "rc": "RC-1", "email": "a@acme.example"}

	seedRequest := func(status certification.Status) *certification.Request {
		r, err := certification.NewRequest(id.RequestID(uuid.New()), company, "recycling", data, now)
		require.NoError(t, err)
		r.Status = status
		require.NoError(t, requests.Create(ctx, r))
		return r
	}
	approved := seedRequest(certification.StatusApproved)
	seedRequest(certification.StatusApproved)
	rejected := seedRequest(certification.StatusRejected)

	cert, err := certificatemodels.NewCertificate(id.CertificateID(uuid.New()), approved.ID, company, "recycling", 365*24*time.Hour, now)
	require.NoError(t, err)
	_, err = certificates.CreateIfAbsent(ctx, cert)
	require.NoError(t, err)

	settled, err := paymentmodels.NewPayment(id.PaymentID(uuid.New()), approved.ID, company, "recycling", paymentmodels.MethodCard, now)
	require.NoError(t, err)
	settled.ApplySettlement("TXN-00000001", now)
	_, err = payments.CreateIfAbsent(ctx, settled)
	require.NoError(t, err)

	pending, err := paymentmodels.NewPayment(id.PaymentID(uuid.New()), rejected.ID, company, "recycling", paymentmodels.MethodCard, now)
	require.NoError(t, err)
	_, err = payments.CreateIfAbsent(ctx, pending)
	require.NoError(t, err)

	require.NoError(t, history.Append(ctx, certification.NewHistoryEntry(rejected.ID, certification.ActionRejected, "incomplete file", nil, now)))

	return &reportFixture{
		svc:     New(reports, requests, certificates, payments, history),
		company: company,
	}
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)

	stats, err := f.svc.Dashboard(ctx, reviewer())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.RequestsByStatus[certification.StatusApproved])
	assert.Equal(t, 1, stats.RequestsByStatus[certification.StatusRejected])
	assert.Zero(t, stats.RequestsByStatus[certification.StatusSubmitted])
	assert.Equal(t, 1, stats.CertificatesIssued)
	assert.Equal(t, 1, stats.PendingPayments)
	assert.Equal(t, 1, stats.RejectionsRecorded)

	t.Run("enterprises cannot read the dashboard", func(t *testing.T) {
		enterprise := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEnterprise, CompanyID: f.company}
		_, err := f.svc.Dashboard(ctx, enterprise)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestCompany(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)
	owner := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEnterprise, CompanyID: f.company}

	stats, err := f.svc.Company(ctx, owner, f.company)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.RequestsByStatus[certification.StatusApproved])
	assert.Equal(t, 1, stats.Certificates)
	assert.Equal(t, 1, stats.SettledPayments)
	assert.InDelta(t, 525.0, stats.TotalPaid, 0.001)

	t.Run("other companies are off limits", func(t *testing.T) {
		stranger := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEnterprise, CompanyID: id.CompanyID(uuid.New())}
		_, err := f.svc.Company(ctx, stranger, f.company)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("reviewers can read any company", func(t *testing.T) {
		stats, err := f.svc.Company(ctx, reviewer(), f.company)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalRequests)
	})
}

func TestGenerateAuditReport(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)
	actor := reviewer()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	report, err := f.svc.GenerateAuditReport(ctx, actor, "H1 audit", from, to)
	require.NoError(t, err)
	assert.Equal(t, "H1 audit", report.Title)
	require.NotNil(t, report.GeneratedBy)
	assert.Equal(t, actor.AccountID, *report.GeneratedBy)
	assert.Equal(t, 3, report.Payload["totalRequests"])
	assert.Equal(t, 1, report.Payload["certificatesIssued"])

	t.Run("reports are persisted and listed newest first", func(t *testing.T) {
		loaded, err := f.svc.Get(ctx, actor, report.ID)
		require.NoError(t, err)
		assert.Equal(t, report.Payload["totalRequests"], loaded.Payload["totalRequests"])

		reports, err := f.svc.List(ctx, actor)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, report.ID, reports[0].ID)
	})

	t.Run("inverted periods refuse", func(t *testing.T) {
		_, err := f.svc.GenerateAuditReport(ctx, actor, "bad period", to, from)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("blank titles refuse", func(t *testing.T) {
		_, err := f.svc.GenerateAuditReport(ctx, actor, "  ", from, to)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown report ids map to not found", func(t *testing.T) {
		_, err := f.svc.Get(ctx, actor, id.ReportID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
