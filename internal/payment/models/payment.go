package models

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// Method is how the certification fee is paid.
type Method string

const (
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
	MethodCheck        Method = "check"
)

func ParseMethod(raw string) (Method, error) {
	switch Method(raw) {
	case MethodCard, MethodBankTransfer, MethodCash, MethodCheck:
		return Method(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment method %q", raw)
	}
}

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {StatusRefunded},
	StatusFailed:    {},
	StatusRefunded:  {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether the payment state machine permits moving
// from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// feeSchedule maps treatment types to the certification fee in MAD.
// Treatment types outside the schedule fall back to the default.
var feeSchedule = map[string]float64{
	"recycling": 500,
	"reuse":     300,
	"disposal":  200,
	"repair":    150,
}

const (
	defaultFee = 500
	// feeRate is the processing surcharge applied on top of the base fee.
	feeRate = 0.05
)

// FeeFor returns the base certification fee in MAD for a treatment type.
func FeeFor(treatmentType string) float64 {
	if fee, ok := feeSchedule[treatmentType]; ok {
		return fee
	}
	return defaultFee
}

// PriceFor returns the full fee breakdown for a treatment type.
func PriceFor(treatmentType string) (amount, fees, total float64) {
	amount = FeeFor(treatmentType)
	fees = amount * feeRate
	return amount, fees, amount + fees
}

// Payment is the certification fee for exactly one request. Amounts are in
// MAD; Total is always Amount plus the processing fees.
type Payment struct {
	ID            id.PaymentID
	RequestID     id.RequestID
	CompanyID     id.CompanyID
	TreatmentType string
	Amount        float64
	Fees          float64
	Total         float64
	Method        Method
	Status        Status
	TransactionID string
	PaymentDate   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPayment prices a pending payment from the fee schedule.
func NewPayment(paymentID id.PaymentID, requestID id.RequestID, companyID id.CompanyID, treatmentType string, method Method, now time.Time) (*Payment, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	amount, fees, total := PriceFor(treatmentType)
	return &Payment{
		ID:            paymentID,
		RequestID:     requestID,
		CompanyID:     companyID,
		TreatmentType: treatmentType,
		Amount:        amount,
		Fees:          fees,
		Total:         total,
		Method:        method,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// TransactionIDFor builds the settlement reference: TXN-<8 uppercase hex
// digits> derived from the given entropy source.
func TransactionIDFor(entropy uuid.UUID) string {
	return fmt.Sprintf("TXN-%08X", binary.BigEndian.Uint32(entropy[:4]))
}

// CanSettle reports whether the payment can be completed.
func (p *Payment) CanSettle() error {
	if !p.Status.CanTransitionTo(StatusCompleted) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payment in status %q cannot be settled", p.Status)
	}
	return nil
}

// ApplySettlement completes the payment and stamps the transaction
// reference and settlement date.
func (p *Payment) ApplySettlement(transactionID string, now time.Time) {
	p.Status = StatusCompleted
	p.TransactionID = transactionID
	paymentDate := now
	p.PaymentDate = &paymentDate
	p.UpdatedAt = now
}

// CanFail reports whether the payment can be marked failed.
func (p *Payment) CanFail() error {
	if !p.Status.CanTransitionTo(StatusFailed) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payment in status %q cannot fail", p.Status)
	}
	return nil
}

// ApplyFailure marks the payment failed.
func (p *Payment) ApplyFailure(now time.Time) {
	p.Status = StatusFailed
	p.UpdatedAt = now
}

// CanCancel reports whether the pending payment can be withdrawn.
func (p *Payment) CanCancel() error {
	if !p.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payment in status %q cannot be cancelled", p.Status)
	}
	return nil
}

// ApplyCancellation withdraws the pending payment.
func (p *Payment) ApplyCancellation(now time.Time) {
	p.Status = StatusCancelled
	p.UpdatedAt = now
}

// CanRefund reports whether a settled payment can be refunded.
func (p *Payment) CanRefund() error {
	if !p.Status.CanTransitionTo(StatusRefunded) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payment in status %q cannot be refunded", p.Status)
	}
	return nil
}

// ApplyRefund refunds the settled payment.
func (p *Payment) ApplyRefund(now time.Time) {
	p.Status = StatusRefunded
	p.UpdatedAt = now
}

// IsSettled reports whether the certification fee has been received.
func (p *Payment) IsSettled() bool {
	return p.Status == StatusCompleted
}

// Clone returns a copy safe for the caller to mutate.
func (p *Payment) Clone() *Payment {
	clone := *p
	if p.PaymentDate != nil {
		v := *p.PaymentDate
		clone.PaymentDate = &v
	}
	return &clone
}
