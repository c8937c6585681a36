package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certification "ecocert/internal/certification/models"
	historystore "ecocert/internal/certification/store/history"
	requeststore "ecocert/internal/certification/store/request"
	"ecocert/internal/payment/models"
	paymentstore "ecocert/internal/payment/store/payment"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

type paymentFixture struct {
	svc      *Service
	payments *paymentstore.InMemoryStore
	requests *requeststore.InMemoryStore
	history  *historystore.InMemoryStore
	owner    id.Actor
	request  *certification.Request
}

func newPaymentFixture(t *testing.T, treatmentType string) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		payments: paymentstore.NewInMemory(),
		requests: requeststore.NewInMemory(),
		history:  historystore.NewInMemory(),
	}
	f.svc = New(f.payments, f.requests, f.history)
	f.owner = id.Actor{
		AccountID: id.AccountID(uuid.New()),
		Role:      id.RoleEnterprise,
		CompanyID: id.CompanyID(uuid.New()),
	}
	r, err := certification.NewRequest(id.RequestID(uuid.New()), f.owner.CompanyID, treatmentType, map[string]any{
		"companyName": "Acme Recycling",
		"ice":         "001",
		"rc":          "RC-42",
		"email":       "contact@acme.example",
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.requests.Create(context.Background(), r))
	f.request = r
	return f
}

// trackingTx wraps a StoreTx and records whether a transaction is open.
type trackingTx struct {
	inner  StoreTx
	mu     sync.Mutex
	open   bool
	begins int
}

func (s *trackingTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	s.mu.Lock()
	s.begins++
	s.open = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.open = false
		s.mu.Unlock()
	}()
	return s.inner.RunInTx(ctx, fn)
}

func (s *trackingTx) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// boundaryLedger counts appends landing inside and outside the transaction.
type boundaryLedger struct {
	store   *historystore.InMemoryStore
	tx      *trackingTx
	inside  int
	outside int
}

func (l *boundaryLedger) Append(ctx context.Context, entry certification.HistoryEntry) error {
	if l.tx.isOpen() {
		l.inside++
	} else {
		l.outside++
	}
	return l.store.Append(ctx, entry)
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, certification.HistoryEntry) error {
	return errors.New("ledger unavailable")
}

func TestQuoteFor(t *testing.T) {
	svc := New(paymentstore.NewInMemory(), requeststore.NewInMemory(), historystore.NewInMemory())

	cases := []struct {
		treatmentType string
		amount        float64
	}{
		{"recycling", 500},
		{"reuse", 300},
		{"disposal", 200},
		{"repair", 150},
		{"decontamination", 500},
	}
	for _, tc := range cases {
		t.Run(tc.treatmentType, func(t *testing.T) {
			quote := svc.QuoteFor(tc.treatmentType)
			assert.Equal(t, tc.amount, quote.Amount)
			assert.InDelta(t, tc.amount*0.05, quote.Fees, 0.001)
			assert.InDelta(t, tc.amount*1.05, quote.Total, 0.001)
		})
	}
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a pending payment priced from the schedule", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")

		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, p.Status)
		assert.Equal(t, 500.0, p.Amount)
		assert.InDelta(t, 525.0, p.Total, 0.001)
		assert.Empty(t, p.TransactionID)

		entries, err := f.history.ListByRequest(ctx, f.request.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, certification.ActionPaymentRequired, entries[0].Action)
	})

	t.Run("creation is idempotent per request", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")

		first, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)
		second, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCash)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, models.MethodCard, second.Method, "the original method wins")

		entries, err := f.history.ListByRequest(ctx, f.request.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no duplicate ledger entry")
	})

	t.Run("rejects unknown methods", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		_, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.Method("crypto"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("strangers cannot create payments", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		stranger := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEnterprise, CompanyID: id.CompanyID(uuid.New())}

		_, err := f.svc.CreatePayment(ctx, stranger, f.request.ID, models.MethodCard)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	t.Run("settles a pending payment with a transaction reference", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)

		settled, err := f.svc.Settle(ctx, f.owner, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, settled.Status)
		assert.Regexp(t, `^TXN-[0-9A-F]{8}$`, settled.TransactionID)
		require.NotNil(t, settled.PaymentDate)

		entries, err := f.history.ListByRequest(ctx, f.request.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, certification.ActionPaymentReceived, entries[0].Action)
	})

	t.Run("concurrent settles admit exactly one winner", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				_, errs[idx] = f.svc.Settle(ctx, f.owner, p.ID)
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			}
		}
		assert.Equal(t, 1, winners)

		entries, err := f.history.ListByRequest(ctx, f.request.ID)
		require.NoError(t, err)
		received := 0
		for _, entry := range entries {
			if entry.Action == certification.ActionPaymentReceived {
				received++
			}
		}
		assert.Equal(t, 1, received)
	})

	t.Run("settlement and its ledger entry share one transaction", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		tx := &trackingTx{inner: newInMemoryPaymentTx()}
		ledger := &boundaryLedger{store: f.history, tx: tx}
		svc := New(f.payments, f.requests, ledger, WithStoreTx(tx))

		p, err := svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)
		settled, err := svc.Settle(ctx, f.owner, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, settled.Status)

		assert.Equal(t, 2, tx.begins, "creation and settlement each open a transaction")
		assert.Equal(t, 2, ledger.inside, "both ledger entries land inside the transaction")
		assert.Zero(t, ledger.outside)

		entries, err := f.history.ListByRequest(ctx, f.request.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, certification.ActionPaymentReceived, entries[0].Action)
	})

	t.Run("a ledger failure surfaces instead of completing silently", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)

		svc := New(f.payments, f.requests, failingLedger{}, WithStoreTx(newInMemoryPaymentTx()))
		_, err = svc.Settle(ctx, f.owner, p.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("failed payments cannot settle", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)
		_, err = f.svc.Fail(ctx, f.owner, p.ID)
		require.NoError(t, err)

		_, err = f.svc.Settle(ctx, f.owner, p.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	authority := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleAuthority, EmployeeID: id.EmployeeID(uuid.New())}

	t.Run("authority refunds a settled payment", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)
		_, err = f.svc.Settle(ctx, f.owner, p.ID)
		require.NoError(t, err)

		refunded, err := f.svc.Refund(ctx, authority, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRefunded, refunded.Status)
	})

	t.Run("pending payments cannot refund", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)

		_, err = f.svc.Refund(ctx, authority, p.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("owners cannot refund", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)
		_, err = f.svc.Settle(ctx, f.owner, p.ID)
		require.NoError(t, err)

		_, err = f.svc.Refund(ctx, f.owner, p.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestIsUnblocked(t *testing.T) {
	ctx := context.Background()

	t.Run("no payment means blocked", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		unblocked, err := f.svc.IsUnblocked(ctx, f.request.ID)
		require.NoError(t, err)
		assert.False(t, unblocked)
	})

	t.Run("pending payment means blocked, settled unblocks", func(t *testing.T) {
		f := newPaymentFixture(t, "recycling")
		p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
		require.NoError(t, err)

		unblocked, err := f.svc.IsUnblocked(ctx, f.request.ID)
		require.NoError(t, err)
		assert.False(t, unblocked)

		_, err = f.svc.Settle(ctx, f.owner, p.ID)
		require.NoError(t, err)

		unblocked, err = f.svc.IsUnblocked(ctx, f.request.ID)
		require.NoError(t, err)
		assert.True(t, unblocked)
	})
}

func TestTotalsForCompany(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, "recycling")
	p, err := f.svc.CreatePayment(ctx, f.owner, f.request.ID, models.MethodCard)
	require.NoError(t, err)
	_, err = f.svc.Settle(ctx, f.owner, p.ID)
	require.NoError(t, err)

	totals, err := f.svc.TotalsForCompany(ctx, f.owner, f.owner.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Count)
	assert.Equal(t, 1, totals.Settled)
	assert.InDelta(t, 525.0, totals.TotalPaid, 0.001)

	t.Run("other companies are off limits", func(t *testing.T) {
		stranger := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleEnterprise, CompanyID: id.CompanyID(uuid.New())}
		_, err := f.svc.TotalsForCompany(ctx, stranger, f.owner.CompanyID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
