package certificate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ecocert/internal/certificate/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists certificates in PostgreSQL. The table carries
// unique constraints on request_id and number.
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

const certificateColumns = `id, number, request_id, company_id, treatment_type, issue_date, expiry_date, revoked_at, created_at`

// CreateIfAbsent inserts the certificate. A unique violation on request_id
// loads and returns the existing certificate with ErrConflict; a violation
// on number returns ErrAlreadyUsed so the caller can retry with a fresh ID.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, cert *models.Certificate) (*models.Certificate, error) {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(cert.ID), cert.Number, uuid.UUID(cert.RequestID), uuid.UUID(cert.CompanyID),
		cert.TreatmentType, cert.IssueDate, cert.ExpiryDate, cert.RevokedAt, cert.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			existing, findErr := s.FindByRequest(ctx, cert.RequestID)
			if findErr == nil {
				return existing, fmt.Errorf("certificate already issued for request: %w", sentinel.ErrConflict)
			}
			if errors.Is(findErr, sentinel.ErrNotFound) {
				return nil, fmt.Errorf("certificate number already in use: %w", sentinel.ErrAlreadyUsed)
			}
			return nil, fmt.Errorf("load existing certificate: %w", findErr)
		}
		return nil, fmt.Errorf("insert certificate: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, uuid.UUID(certificateID))
	return scanCertificate(row)
}

func (s *PostgresStore) FindByRequest(ctx context.Context, requestID id.RequestID) (*models.Certificate, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE request_id = $1`, uuid.UUID(requestID))
	return scanCertificate(row)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE number = $1`, number)
	return scanCertificate(row)
}

func (s *PostgresStore) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Certificate, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE company_id = $1 ORDER BY issue_date DESC, number`,
		uuid.UUID(companyID))
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.Certificate, 0)
	for rows.Next() {
		cert, err := scanCertificateFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, cert *models.Certificate) error {
	result, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE certificates SET revoked_at = $2 WHERE id = $1
	`, uuid.UUID(cert.ID), cert.RevokedAt)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("certificate not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row *sql.Row) (*models.Certificate, error) {
	cert, err := scanCertificateFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("certificate not found: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	return cert, nil
}

func scanCertificateFrom(scanner rowScanner) (*models.Certificate, error) {
	var (
		cert          models.Certificate
		certificateID uuid.UUID
		requestID     uuid.UUID
		companyID     uuid.UUID
		revokedAt     sql.NullTime
	)
	err := scanner.Scan(&certificateID, &cert.Number, &requestID, &companyID,
		&cert.TreatmentType, &cert.IssueDate, &cert.ExpiryDate, &revokedAt, &cert.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	cert.ID = id.CertificateID(certificateID)
	cert.RequestID = id.RequestID(requestID)
	cert.CompanyID = id.CompanyID(companyID)
	if revokedAt.Valid {
		cert.RevokedAt = &revokedAt.Time
	}
	return &cert, nil
}
