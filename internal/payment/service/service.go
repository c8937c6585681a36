package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	certification "ecocert/internal/certification/models"
	"ecocert/internal/notification"
	"ecocert/internal/payment/models"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/requestcontext"
)

type Store interface {
	CreateIfAbsent(ctx context.Context, p *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindByRequest(ctx context.Context, requestID id.RequestID) (*models.Payment, error)
	Execute(ctx context.Context, paymentID id.PaymentID, validateFn func(*models.Payment) error, mutateFn func(*models.Payment)) (*models.Payment, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Payment, error)
}

// RequestFinder resolves the certification request a payment belongs to.
// The certification request store satisfies this.
type RequestFinder interface {
	FindByID(ctx context.Context, requestID id.RequestID) (*certification.Request, error)
}

// HistoryStore is the request ledger; payment milestones are recorded
// there alongside workflow transitions.
type HistoryStore interface {
	Append(ctx context.Context, entry certification.HistoryEntry) error
}

type Notifier interface {
	Emit(ctx context.Context, event notification.Event) error
}

// Service prices, collects and refunds certification fees.
type Service struct {
	payments Store
	requests RequestFinder
	history  HistoryStore
	notifier Notifier
	tx       StoreTx
	logger   *slog.Logger
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

// WithStoreTx overrides the transactional runner so the payment mutation and
// its ledger entry commit or roll back together.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(payments Store, requests RequestFinder, history HistoryStore, opts ...Option) *Service {
	s := &Service{payments: payments, requests: requests, history: history}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryPaymentTx()
	}
	return s
}

// Quote is the fee breakdown for a treatment type, in MAD.
type Quote struct {
	TreatmentType string
	Amount        float64
	Fees          float64
	Total         float64
}

// QuoteFor prices a treatment type without creating anything.
func (s *Service) QuoteFor(treatmentType string) Quote {
	amount, fees, total := models.PriceFor(treatmentType)
	return Quote{TreatmentType: treatmentType, Amount: amount, Fees: fees, Total: total}
}

// CreatePayment opens the fee payment for a request. Creation is
// idempotent: when the request already has a payment, the existing one is
// returned unchanged regardless of the requested method.
func (s *Service) CreatePayment(ctx context.Context, actor id.Actor, requestID id.RequestID, method models.Method) (*models.Payment, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if !actor.IsAdmin() && !actor.IsReviewer() && !actor.OwnsCompany(r.CompanyID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to create a payment for this request")
	}
	if r.Status == certification.StatusCancelled {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot create a payment for a cancelled request")
	}

	now := requestcontext.Now(ctx)
	p, err := models.NewPayment(id.PaymentID(uuid.New()), requestID, r.CompanyID, r.TreatmentType, method, now)
	if err != nil {
		return nil, err
	}

	var (
		stored *models.Payment
		reused bool
	)
	err = s.tx.RunInTx(withTxPayment(ctx, requestID.String()), func(txCtx context.Context) error {
		created, err := s.payments.CreateIfAbsent(txCtx, p)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				stored, reused = created, true
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create payment")
		}
		stored = created

		entry := certification.NewHistoryEntry(requestID, certification.ActionPaymentRequired,
			fmt.Sprintf("payment of %.2f MAD required", stored.Total), performedBy(actor), now).
			WithExtra(map[string]any{"payment_id": stored.ID.String(), "total": stored.Total})
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payment creation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reused {
		return stored, nil
	}
	s.emit(ctx, notification.EventPaymentRequired, stored, actor)
	return stored, nil
}

// GetByRequest returns the payment attached to a request.
func (s *Service) GetByRequest(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Payment, error) {
	p, err := s.payments.FindByRequest(ctx, requestID)
	if err != nil {
		return nil, wrapPaymentErr(err)
	}
	if err := canView(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Settle completes a pending payment and stamps the transaction reference.
// Under concurrent settles exactly one caller wins; the rest observe an
// invariant violation. The settlement is recorded in the request ledger.
func (s *Service) Settle(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error) {
	now := requestcontext.Now(ctx)
	transactionID := models.TransactionIDFor(uuid.New())

	var p *models.Payment
	err := s.tx.RunInTx(withTxPayment(ctx, paymentID.String()), func(txCtx context.Context) error {
		settled, err := s.payments.Execute(txCtx, paymentID,
			func(p *models.Payment) error {
				if err := canView(actor, p); err != nil {
					return err
				}
				return p.CanSettle()
			},
			func(p *models.Payment) {
				p.ApplySettlement(transactionID, now)
			},
		)
		if err != nil {
			return wrapPaymentErr(err)
		}
		p = settled

		entry := certification.NewHistoryEntry(p.RequestID, certification.ActionPaymentReceived,
			fmt.Sprintf("payment of %.2f MAD received (%s)", p.Total, p.TransactionID), performedBy(actor), now).
			WithExtra(map[string]any{"payment_id": p.ID.String(), "transaction_id": p.TransactionID})
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record settlement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, notification.EventPaymentReceived, p, actor)
	return p, nil
}

// Fail marks a pending payment as failed so the company can retry.
func (s *Service) Fail(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error) {
	now := requestcontext.Now(ctx)
	p, err := s.payments.Execute(ctx, paymentID,
		func(p *models.Payment) error {
			if err := canView(actor, p); err != nil {
				return err
			}
			return p.CanFail()
		},
		func(p *models.Payment) {
			p.ApplyFailure(now)
		},
	)
	if err != nil {
		return nil, wrapPaymentErr(err)
	}
	return p, nil
}

// Cancel withdraws a pending payment.
func (s *Service) Cancel(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error) {
	now := requestcontext.Now(ctx)
	p, err := s.payments.Execute(ctx, paymentID,
		func(p *models.Payment) error {
			if err := canView(actor, p); err != nil {
				return err
			}
			return p.CanCancel()
		},
		func(p *models.Payment) {
			p.ApplyCancellation(now)
		},
	)
	if err != nil {
		return nil, wrapPaymentErr(err)
	}
	return p, nil
}

// Refund returns a settled fee. Only authorities and admins may refund.
func (s *Service) Refund(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error) {
	if actor.Role != id.RoleAuthority && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only authorities can refund payments")
	}

	now := requestcontext.Now(ctx)
	p, err := s.payments.Execute(ctx, paymentID,
		func(p *models.Payment) error {
			return p.CanRefund()
		},
		func(p *models.Payment) {
			p.ApplyRefund(now)
		},
	)
	if err != nil {
		return nil, wrapPaymentErr(err)
	}
	s.emit(ctx, notification.EventPaymentRefunded, p, actor)
	return p, nil
}

// IsUnblocked reports whether certificate issuance may proceed for the
// request: true once its payment is settled. A request with no payment at
// all is blocked.
func (s *Service) IsUnblocked(ctx context.Context, requestID id.RequestID) (bool, error) {
	p, err := s.payments.FindByRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsSettled(), nil
}

// CompanyTotals summarizes a company's payment activity.
type CompanyTotals struct {
	Count     int
	Settled   int
	TotalPaid float64
}

// TotalsForCompany aggregates payment totals for a company.
func (s *Service) TotalsForCompany(ctx context.Context, actor id.Actor, companyID id.CompanyID) (*CompanyTotals, error) {
	if !actor.IsReviewer() && !actor.IsAdmin() && !actor.OwnsCompany(companyID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to view payments for this company")
	}
	payments, err := s.payments.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	totals := &CompanyTotals{Count: len(payments)}
	for _, p := range payments {
		if p.IsSettled() {
			totals.Settled++
			totals.TotalPaid += p.Total
		}
	}
	return totals, nil
}

func (s *Service) emit(ctx context.Context, event notification.WorkflowEvent, p *models.Payment, actor id.Actor) {
	if s.notifier == nil {
		return
	}
	actorID := ""
	if !actor.AccountID.IsNil() {
		actorID = actor.AccountID.String()
	}
	err := s.notifier.Emit(ctx, notification.Event{
		Category:      event.Category(),
		RequestID:     p.RequestID,
		CompanyID:     p.CompanyID,
		Action:        string(event),
		Reason:        p.TransactionID,
		ActorID:       actorID,
		CorrelationID: requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "payment event dropped", "event", string(event), "payment_id", p.ID, "error", err)
	}
}

func canView(actor id.Actor, p *models.Payment) error {
	if actor.IsAdmin() || actor.IsReviewer() || actor.OwnsCompany(p.CompanyID) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not allowed to access this payment")
}

func performedBy(actor id.Actor) *id.AccountID {
	if actor.AccountID.IsNil() {
		return nil
	}
	accountID := actor.AccountID
	return &accountID
}

func wrapPaymentErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "payment not found")
	default:
		return err
	}
}
