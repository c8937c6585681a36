package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ecocert/internal/report/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists generated reports in PostgreSQL. The payload
// snapshot lands in a JSONB column.
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

const reportColumns = `id, title, period_start, period_end, payload, generated_by, created_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.GeneratedReport) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("marshal report payload: %w", err)
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO generated_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(r.ID), r.Title, r.PeriodStart, r.PeriodEnd, payload,
		accountParam(r.GeneratedBy), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.GeneratedReport, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM generated_reports WHERE id = $1`, uuid.UUID(reportID))
	r, err := scanReportFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report not found: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.GeneratedReport, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+reportColumns+` FROM generated_reports ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.GeneratedReport, 0)
	for rows.Next() {
		r, err := scanReportFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReportFrom(scanner rowScanner) (*models.GeneratedReport, error) {
	var (
		r           models.GeneratedReport
		reportID    uuid.UUID
		payload     []byte
		generatedBy uuid.NullUUID
	)
	if err := scanner.Scan(&reportID, &r.Title, &r.PeriodStart, &r.PeriodEnd,
		&payload, &generatedBy, &r.CreatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal report payload: %w", err)
		}
	}
	r.ID = id.ReportID(reportID)
	if generatedBy.Valid {
		accountID := id.AccountID(generatedBy.UUID)
		r.GeneratedBy = &accountID
	}
	return &r, nil
}

func accountParam(accountID *id.AccountID) any {
	if accountID == nil {
		return nil
	}
	return uuid.UUID(*accountID)
}
