package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ecocert/internal/certificate/models"
	"ecocert/internal/notification"
	"ecocert/internal/platform/redis"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/requestcontext"
)

type Store interface {
	CreateIfAbsent(ctx context.Context, cert *models.Certificate) (*models.Certificate, error)
	FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error)
	FindByRequest(ctx context.Context, requestID id.RequestID) (*models.Certificate, error)
	FindByNumber(ctx context.Context, number string) (*models.Certificate, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Certificate, error)
	Update(ctx context.Context, cert *models.Certificate) error
}

// PaymentGate reports whether the certification fee for a request has been
// settled. Only consulted when payment-gated issuance is enabled.
type PaymentGate interface {
	IsUnblocked(ctx context.Context, requestID id.RequestID) (bool, error)
}

// Renderer produces the downloadable certificate document.
type Renderer interface {
	Render(cert *models.Certificate) ([]byte, error)
}

type Notifier interface {
	Emit(ctx context.Context, event notification.Event) error
}

// Service issues, revokes and renders DEEE certificates.
type Service struct {
	certs      Store
	gate       PaymentGate
	renderer   Renderer
	cache      *redis.Client
	cacheTTL   time.Duration
	validity   time.Duration
	gatedIssue bool
	notifier   Notifier
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithPaymentGate enables payment-gated issuance backed by the given gate.
func WithPaymentGate(gate PaymentGate) Option {
	return func(s *Service) {
		s.gate = gate
		s.gatedIssue = true
	}
}

// WithRenderCache caches rendered certificates in Redis. A nil client
// disables caching.
func WithRenderCache(cache *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// New constructs the certificate service. validity is the issued-to-expiry
// window applied to every certificate.
func New(certs Store, renderer Renderer, validity time.Duration, opts ...Option) *Service {
	s := &Service{
		certs:    certs,
		renderer: renderer,
		validity: validity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates the certificate for an approved request. Issue is
// idempotent: when the request already has a certificate, the existing one
// is returned with created=false. A certificate number collision is retried
// once with a fresh ID.
func (s *Service) Issue(ctx context.Context, requestID id.RequestID, companyID id.CompanyID, treatmentType string) (*models.Certificate, bool, error) {
	if s.gatedIssue {
		unblocked, err := s.gate.IsUnblocked(ctx, requestID)
		if err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check payment status")
		}
		if !unblocked {
			return nil, false, dErrors.New(dErrors.CodeConflict, "payment is required before certificate issuance")
		}
	}

	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < 2; attempt++ {
		cert, err := models.NewCertificate(id.CertificateID(uuid.New()), requestID, companyID, treatmentType, s.validity, now)
		if err != nil {
			return nil, false, err
		}
		stored, err := s.certs.CreateIfAbsent(ctx, cert)
		switch {
		case err == nil:
			return stored, true, nil
		case errors.Is(err, sentinel.ErrConflict):
			return stored, false, nil
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			continue
		default:
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
		}
	}
	return nil, false, dErrors.New(dErrors.CodeInternal, "could not allocate a unique certificate number")
}

// Get loads a certificate, enforcing company scoping for enterprises.
func (s *Service) Get(ctx context.Context, actor id.Actor, certificateID id.CertificateID) (*models.Certificate, error) {
	cert, err := s.certs.FindByID(ctx, certificateID)
	if err != nil {
		return nil, wrapCertErr(err)
	}
	if err := canView(actor, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// GetByRequest loads the certificate issued for a request.
func (s *Service) GetByRequest(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Certificate, error) {
	cert, err := s.certs.FindByRequest(ctx, requestID)
	if err != nil {
		return nil, wrapCertErr(err)
	}
	if err := canView(actor, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// VerificationResult is the public answer for a certificate number lookup.
type VerificationResult struct {
	Number        string
	Status        models.Status
	TreatmentType string
	IssueDate     time.Time
	ExpiryDate    time.Time
}

// Verify answers a public certificate number lookup. No authentication is
// required: the result exposes only what is printed on the certificate.
func (s *Service) Verify(ctx context.Context, number string) (*VerificationResult, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "certificate number is required")
	}
	cert, err := s.certs.FindByNumber(ctx, number)
	if err != nil {
		return nil, wrapCertErr(err)
	}
	return &VerificationResult{
		Number:        cert.Number,
		Status:        cert.Status(requestcontext.Now(ctx)),
		TreatmentType: cert.TreatmentType,
		IssueDate:     cert.IssueDate,
		ExpiryDate:    cert.ExpiryDate,
	}, nil
}

// ListForCompany returns a company's certificates, newest first.
func (s *Service) ListForCompany(ctx context.Context, actor id.Actor, companyID id.CompanyID) ([]*models.Certificate, error) {
	if !actor.IsReviewer() && !actor.IsAdmin() && !actor.OwnsCompany(companyID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to list certificates for this company")
	}
	certs, err := s.certs.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}

// Revoke withdraws a certificate. Only authorities and admins may revoke;
// the certificate row survives so verification reports it as revoked.
func (s *Service) Revoke(ctx context.Context, actor id.Actor, certificateID id.CertificateID) (*models.Certificate, error) {
	if actor.Role != id.RoleAuthority && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only authorities can revoke certificates")
	}

	cert, err := s.certs.FindByID(ctx, certificateID)
	if err != nil {
		return nil, wrapCertErr(err)
	}
	if err := cert.CanRevoke(); err != nil {
		return nil, err
	}
	cert.ApplyRevocation(requestcontext.Now(ctx))
	if err := s.certs.Update(ctx, cert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
	}
	s.invalidateRender(ctx, cert.ID)

	if s.notifier != nil {
		event := notification.EventCertificateRevoked
		err := s.notifier.Emit(ctx, notification.Event{
			Category:      event.Category(),
			RequestID:     cert.RequestID,
			CompanyID:     cert.CompanyID,
			Action:        string(event),
			Reason:        cert.Number,
			ActorID:       actor.AccountID.String(),
			CorrelationID: requestcontext.RequestID(ctx),
		})
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "revocation event dropped", "certificate_id", cert.ID, "error", err)
		}
	}
	return cert, nil
}

func canView(actor id.Actor, cert *models.Certificate) error {
	if actor.IsAdmin() || actor.IsReviewer() || actor.OwnsCompany(cert.CompanyID) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not allowed to view this certificate")
}

func wrapCertErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "certificate not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "certificate store failure")
	}
}
