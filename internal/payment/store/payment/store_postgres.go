package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ecocert/internal/payment/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists payments in PostgreSQL with a unique constraint on
// request_id.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const paymentColumns = `id, request_id, company_id, treatment_type, amount, fees, total,
	method, status, transaction_id, payment_date, created_at, updated_at`

// CreateIfAbsent inserts the payment; a unique violation on request_id
// loads and returns the existing payment with ErrConflict.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, uuid.UUID(p.ID), uuid.UUID(p.RequestID), uuid.UUID(p.CompanyID), p.TreatmentType,
		p.Amount, p.Fees, p.Total, string(p.Method), string(p.Status),
		p.TransactionID, p.PaymentDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			existing, findErr := s.FindByRequest(ctx, p.RequestID)
			if findErr != nil {
				return nil, fmt.Errorf("load existing payment: %w", findErr)
			}
			return existing, fmt.Errorf("payment already exists for request: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, uuid.UUID(paymentID))
	return scanPayment(row)
}

func (s *PostgresStore) FindByRequest(ctx context.Context, requestID id.RequestID) (*models.Payment, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE request_id = $1`, uuid.UUID(requestID))
	return scanPayment(row)
}

// Execute locks the payment row with SELECT FOR UPDATE, runs validateFn,
// then persists the mutation. A local transaction is opened when the
// context carries none.
func (s *PostgresStore) Execute(ctx context.Context, paymentID id.PaymentID, validateFn func(*models.Payment) error, mutateFn func(*models.Payment)) (*models.Payment, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, paymentID, validateFn, mutateFn)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated, err := s.executeLocked(txcontext.WithTx(ctx, tx), paymentID, validateFn, mutateFn)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment transaction: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) executeLocked(ctx context.Context, paymentID id.PaymentID, validateFn func(*models.Payment) error, mutateFn func(*models.Payment)) (*models.Payment, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, uuid.UUID(paymentID))
	p, err := scanPayment(row)
	if err != nil {
		return nil, err
	}
	if err := validateFn(p.Clone()); err != nil {
		return nil, err
	}
	mutateFn(p)

	_, err = s.querier(ctx).ExecContext(ctx, `
		UPDATE payments
		SET status = $2, transaction_id = $3, payment_date = $4, updated_at = $5
		WHERE id = $1
	`, uuid.UUID(p.ID), string(p.Status), p.TransactionID, p.PaymentDate, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Payment, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE company_id = $1 ORDER BY created_at DESC, id`,
		uuid.UUID(companyID))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPaymentFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var count int
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row *sql.Row) (*models.Payment, error) {
	p, err := scanPaymentFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment not found: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func scanPaymentFrom(scanner rowScanner) (*models.Payment, error) {
	var (
		p           models.Payment
		paymentID   uuid.UUID
		requestID   uuid.UUID
		companyID   uuid.UUID
		method      string
		status      string
		paymentDate sql.NullTime
	)
	err := scanner.Scan(&paymentID, &requestID, &companyID, &p.TreatmentType,
		&p.Amount, &p.Fees, &p.Total, &method, &status,
		&p.TransactionID, &paymentDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.ID = id.PaymentID(paymentID)
	p.RequestID = id.RequestID(requestID)
	p.CompanyID = id.CompanyID(companyID)
	p.Method = models.Method(method)
	p.Status = models.Status(status)
	if paymentDate.Valid {
		p.PaymentDate = &paymentDate.Time
	}
	return &p, nil
}
