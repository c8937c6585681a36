package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists certification requests in PostgreSQL. Submitted
// data is stored as JSONB so resubmissions can merge arbitrary fields.
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

const requestColumns = `id, company_id, treatment_type, status, submitted_data, submission_date,
	assigned_to, validated_by, reviewed_by, main_document_url, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	data, err := json.Marshal(r.SubmittedData)
	if err != nil {
		return fmt.Errorf("marshal submitted data: %w", err)
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO certification_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, uuid.UUID(r.ID), uuid.UUID(r.CompanyID), r.TreatmentType, string(r.Status),
		data, r.SubmissionDate, employeeParam(r.AssignedTo), employeeParam(r.ValidatedBy),
		employeeParam(r.ReviewedBy), r.MainDocumentURL, r.Version, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("request already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM certification_requests WHERE id = $1`, uuid.UUID(requestID))
	return scanRequest(row)
}

// Execute locks the row with SELECT FOR UPDATE, runs validateFn, then
// persists the mutated request with a version bump. When no transaction is
// on the context, a local one is opened so the lock is released on return.
func (s *PostgresStore) Execute(ctx context.Context, requestID id.RequestID, validateFn func(*models.Request) error, mutateFn func(*models.Request)) (*models.Request, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, requestID, validateFn, mutateFn)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin request transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated, err := s.executeLocked(txcontext.WithTx(ctx, tx), requestID, validateFn, mutateFn)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit request transaction: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) executeLocked(ctx context.Context, requestID id.RequestID, validateFn func(*models.Request) error, mutateFn func(*models.Request)) (*models.Request, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM certification_requests WHERE id = $1 FOR UPDATE`, uuid.UUID(requestID))
	r, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	if err := validateFn(r.Clone()); err != nil {
		return nil, err
	}
	mutateFn(r)
	r.Version++

	data, err := json.Marshal(r.SubmittedData)
	if err != nil {
		return nil, fmt.Errorf("marshal submitted data: %w", err)
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		UPDATE certification_requests
		SET status = $2, submitted_data = $3, submission_date = $4, assigned_to = $5,
			validated_by = $6, reviewed_by = $7, main_document_url = $8, version = $9, updated_at = $10
		WHERE id = $1
	`, uuid.UUID(r.ID), string(r.Status), data, r.SubmissionDate,
		employeeParam(r.AssignedTo), employeeParam(r.ValidatedBy), employeeParam(r.ReviewedBy),
		r.MainDocumentURL, r.Version, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Request, error) {
	return s.List(ctx, Filters{CompanyID: companyID})
}

func (s *PostgresStore) List(ctx context.Context, filters Filters) ([]*models.Request, error) {
	where, args := filterClauses(filters)
	query := `SELECT ` + requestColumns + ` FROM certification_requests` + where +
		" ORDER BY submission_date DESC, id"

	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.Request, 0)
	for rows.Next() {
		r, err := scanRequestRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, filters Filters) (int, error) {
	where, args := filterClauses(filters)
	var count int
	err := s.querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM certification_requests`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

func filterClauses(filters Filters) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.TreatmentType != "" {
		args = append(args, filters.TreatmentType)
		where += fmt.Sprintf(" AND treatment_type = $%d", len(args))
	}
	if !filters.CompanyID.IsNil() {
		args = append(args, uuid.UUID(filters.CompanyID))
		where += fmt.Sprintf(" AND company_id = $%d", len(args))
	}
	return where, args
}

func employeeParam(employeeID *id.EmployeeID) any {
	if employeeID == nil {
		return nil
	}
	return uuid.UUID(*employeeID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row *sql.Row) (*models.Request, error) {
	r, err := scanRequestFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

func scanRequestRows(rows *sql.Rows) (*models.Request, error) {
	return scanRequestFrom(rows)
}

func scanRequestFrom(scanner rowScanner) (*models.Request, error) {
	var (
		r           models.Request
		requestID   uuid.UUID
		companyID   uuid.UUID
		status      string
		data        []byte
		assignedTo  uuid.NullUUID
		validatedBy uuid.NullUUID
		reviewedBy  uuid.NullUUID
	)
	err := scanner.Scan(&requestID, &companyID, &r.TreatmentType, &status, &data,
		&r.SubmissionDate, &assignedTo, &validatedBy, &reviewedBy,
		&r.MainDocumentURL, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}
	if err := json.Unmarshal(data, &r.SubmittedData); err != nil {
		return nil, fmt.Errorf("unmarshal submitted data: %w", err)
	}
	r.ID = id.RequestID(requestID)
	r.CompanyID = id.CompanyID(companyID)
	r.Status = models.Status(status)
	r.AssignedTo = employeeFromNull(assignedTo)
	r.ValidatedBy = employeeFromNull(validatedBy)
	r.ReviewedBy = employeeFromNull(reviewedBy)
	return &r, nil
}

func employeeFromNull(v uuid.NullUUID) *id.EmployeeID {
	if !v.Valid {
		return nil
	}
	e := id.EmployeeID(v.UUID)
	return &e
}
