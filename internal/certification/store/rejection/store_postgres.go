package rejection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists rejection reports in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, report *models.RejectionReport) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO rejection_reports (id, request_id, rejected_by, comments, rejected_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(report.ID), uuid.UUID(report.RequestID), uuid.UUID(report.RejectedBy),
		report.Comments, report.Date)
	if err != nil {
		return fmt.Errorf("insert rejection report: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID id.RequestID) ([]*models.RejectionReport, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, request_id, rejected_by, comments, rejected_at
		FROM rejection_reports
		WHERE request_id = $1
		ORDER BY rejected_at DESC
	`, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list rejection reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.RejectionReport, 0)
	for rows.Next() {
		var (
			report     models.RejectionReport
			reportID   uuid.UUID
			reqID      uuid.UUID
			rejectedBy uuid.UUID
		)
		if err := rows.Scan(&reportID, &reqID, &rejectedBy, &report.Comments, &report.Date); err != nil {
			return nil, fmt.Errorf("scan rejection report: %w", err)
		}
		report.ID = id.ReportID(reportID)
		report.RequestID = id.RequestID(reqID)
		report.RejectedBy = id.EmployeeID(rejectedBy)
		out = append(out, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejection reports: %w", err)
	}
	return out, nil
}
