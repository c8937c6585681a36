package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists form submissions in PostgreSQL.
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

func (s *PostgresStore) Add(ctx context.Context, sub *models.FormSubmission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("marshal form answers: %w", err)
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO form_submissions (id, request_id, form_name, answers, submitted_by, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(sub.ID), uuid.UUID(sub.RequestID), sub.FormName, answers,
		uuid.UUID(sub.SubmittedBy), sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert form submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID id.RequestID) ([]*models.FormSubmission, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, request_id, form_name, answers, submitted_by, submitted_at
		FROM form_submissions
		WHERE request_id = $1
		ORDER BY submitted_at
	`, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list form submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.FormSubmission, 0)
	for rows.Next() {
		var (
			sub     models.FormSubmission
			subID   uuid.UUID
			reqID   uuid.UUID
			byID    uuid.UUID
			answers []byte
		)
		if err := rows.Scan(&subID, &reqID, &sub.FormName, &answers, &byID, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan form submission: %w", err)
		}
		if err := json.Unmarshal(answers, &sub.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal form answers: %w", err)
		}
		sub.ID = id.FormSubmissionID(subID)
		sub.RequestID = id.RequestID(reqID)
		sub.SubmittedBy = id.AccountID(byID)
		out = append(out, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form submissions: %w", err)
	}
	return out, nil
}
