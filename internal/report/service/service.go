package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	certification "ecocert/internal/certification/models"
	requeststore "ecocert/internal/certification/store/request"
	certificate "ecocert/internal/certificate/models"
	payment "ecocert/internal/payment/models"
	"ecocert/internal/report/models"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/requestcontext"
)

// Store persists generated audit reports.
type Store interface {
	Create(ctx context.Context, r *models.GeneratedReport) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.GeneratedReport, error)
	List(ctx context.Context) ([]*models.GeneratedReport, error)
}

// RequestCounter counts certification requests matching a filter.
type RequestCounter interface {
	Count(ctx context.Context, filters requeststore.Filters) (int, error)
}

// CertificateReader exposes the certificate reads the projections need.
type CertificateReader interface {
	Count(ctx context.Context) (int, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*certificate.Certificate, error)
}

// PaymentReader exposes the payment reads the projections need.
type PaymentReader interface {
	CountByStatus(ctx context.Context, status payment.Status) (int, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*payment.Payment, error)
}

// HistoryCounter counts ledger entries by action.
type HistoryCounter interface {
	CountByAction(ctx context.Context, action certification.HistoryAction) (int, error)
}

// Service assembles read-only projections over the other contexts' stores.
// The numbers are an eventually consistent snapshot: each read runs against
// live stores, so a transition committed mid-gather may straddle counters.
type Service struct {
	reports      Store
	requests     RequestCounter
	certificates CertificateReader
	payments     PaymentReader
	history      HistoryCounter
	logger       *slog.Logger
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(reports Store, requests RequestCounter, certificates CertificateReader, payments PaymentReader, history HistoryCounter, opts ...Option) *Service {
	s := &Service{
		reports:      reports,
		requests:     requests,
		certificates: certificates,
		payments:     payments,
		history:      history,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var trackedStatuses = []certification.Status{
	certification.StatusSubmitted,
	certification.StatusUnderReview,
	certification.StatusApproved,
	certification.StatusRejected,
	certification.StatusCancelled,
}

// DashboardStats is the system-wide projection served to authorities.
type DashboardStats struct {
	TotalRequests      int
	RequestsByStatus   map[certification.Status]int
	CertificatesIssued int
	PendingPayments    int
	RejectionsRecorded int
	GeneratedAt        time.Time
}

// CompanyStats is the per-company projection served to enterprises.
type CompanyStats struct {
	CompanyID        id.CompanyID
	TotalRequests    int
	RequestsByStatus map[certification.Status]int
	Certificates     int
	SettledPayments  int
	TotalPaid        float64
	GeneratedAt      time.Time
}

// Dashboard gathers the system-wide statistics. Reads fan out in parallel
// and the first failing read cancels the rest.
func (s *Service) Dashboard(ctx context.Context, actor id.Actor) (*DashboardStats, error) {
	if !actor.IsReviewer() && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only reviewers can read the dashboard")
	}

	stats := &DashboardStats{
		RequestsByStatus: make(map[certification.Status]int, len(trackedStatuses)),
		GeneratedAt:      requestcontext.Now(ctx),
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := s.requests.Count(ctx, requeststore.Filters{})
		if err != nil {
			return err
		}
		stats.TotalRequests = count
		return nil
	})
	for _, status := range trackedStatuses {
		g.Go(func() error {
			count, err := s.requests.Count(ctx, requeststore.Filters{Status: status})
			if err != nil {
				return err
			}
			mu.Lock()
			stats.RequestsByStatus[status] = count
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		count, err := s.certificates.Count(ctx)
		if err != nil {
			return err
		}
		stats.CertificatesIssued = count
		return nil
	})
	g.Go(func() error {
		count, err := s.payments.CountByStatus(ctx, payment.StatusPending)
		if err != nil {
			return err
		}
		stats.PendingPayments = count
		return nil
	})
	g.Go(func() error {
		count, err := s.history.CountByAction(ctx, certification.ActionRejected)
		if err != nil {
			return err
		}
		stats.RejectionsRecorded = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to gather dashboard statistics")
	}
	return stats, nil
}

// Company gathers the statistics for one company. Enterprises may read
// their own numbers only.
func (s *Service) Company(ctx context.Context, actor id.Actor, companyID id.CompanyID) (*CompanyStats, error) {
	if !actor.IsReviewer() && !actor.IsAdmin() && !actor.OwnsCompany(companyID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot read another company's statistics")
	}

	stats := &CompanyStats{
		CompanyID:        companyID,
		RequestsByStatus: make(map[certification.Status]int, len(trackedStatuses)),
		GeneratedAt:      requestcontext.Now(ctx),
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := s.requests.Count(ctx, requeststore.Filters{CompanyID: companyID})
		if err != nil {
			return err
		}
		stats.TotalRequests = count
		return nil
	})
	for _, status := range trackedStatuses {
		g.Go(func() error {
			count, err := s.requests.Count(ctx, requeststore.Filters{Status: status, CompanyID: companyID})
			if err != nil {
				return err
			}
			mu.Lock()
			stats.RequestsByStatus[status] = count
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		certs, err := s.certificates.ListByCompany(ctx, companyID)
		if err != nil {
			return err
		}
		stats.Certificates = len(certs)
		return nil
	})
	g.Go(func() error {
		payments, err := s.payments.ListByCompany(ctx, companyID)
		if err != nil {
			return err
		}
		settled, paid := 0, 0.0
		for _, p := range payments {
			if p.IsSettled() {
				settled++
				paid += p.Total
			}
		}
		stats.SettledPayments = settled
		stats.TotalPaid = paid
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to gather company statistics")
	}
	return stats, nil
}

// GenerateAuditReport snapshots the dashboard numbers for a period and
// persists them as an immutable report.
func (s *Service) GenerateAuditReport(ctx context.Context, actor id.Actor, title string, periodStart, periodEnd time.Time) (*models.GeneratedReport, error) {
	stats, err := s.Dashboard(ctx, actor)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[string]any, len(stats.RequestsByStatus))
	for status, count := range stats.RequestsByStatus {
		byStatus[string(status)] = count
	}
	payload := map[string]any{
		"totalRequests":      stats.TotalRequests,
		"requestsByStatus":   byStatus,
		"certificatesIssued": stats.CertificatesIssued,
		"pendingPayments":    stats.PendingPayments,
		"rejectionsRecorded": stats.RejectionsRecorded,
	}

	report, err := models.NewGeneratedReport(id.ReportID(uuid.New()), title,
		periodStart, periodEnd, payload, performedBy(actor), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist report")
	}

	s.logger.InfoContext(ctx, "audit report generated",
		slog.String("report_id", report.ID.String()),
		slog.String("title", report.Title),
	)
	return report, nil
}

// Get returns a persisted report. Reviewer and admin only.
func (s *Service) Get(ctx context.Context, actor id.Actor, reportID id.ReportID) (*models.GeneratedReport, error) {
	if !actor.IsReviewer() && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only reviewers can read reports")
	}
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, wrapReportErr(err)
	}
	return report, nil
}

// List returns all persisted reports, newest first. Reviewer and admin only.
func (s *Service) List(ctx context.Context, actor id.Actor) ([]*models.GeneratedReport, error) {
	if !actor.IsReviewer() && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only reviewers can read reports")
	}
	reports, err := s.reports.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return reports, nil
}

func wrapReportErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "report store failure")
}

func performedBy(actor id.Actor) *id.AccountID {
	if actor.AccountID.IsNil() {
		return nil
	}
	accountID := actor.AccountID
	return &accountID
}
