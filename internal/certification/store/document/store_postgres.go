package document

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists supporting documents in PostgreSQL.
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

func (s *PostgresStore) Add(ctx context.Context, doc *models.SupportingDocument) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO supporting_documents (id, request_id, name, doc_type, file_url, description, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(doc.ID), uuid.UUID(doc.RequestID), doc.Name, doc.DocType,
		doc.FileURL, doc.Description, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert supporting document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID id.RequestID) ([]*models.SupportingDocument, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, request_id, name, doc_type, file_url, description, uploaded_at
		FROM supporting_documents
		WHERE request_id = $1
		ORDER BY uploaded_at
	`, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list supporting documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.SupportingDocument, 0)
	for rows.Next() {
		var (
			doc   models.SupportingDocument
			docID uuid.UUID
			reqID uuid.UUID
		)
		if err := rows.Scan(&docID, &reqID, &doc.Name, &doc.DocType,
			&doc.FileURL, &doc.Description, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan supporting document: %w", err)
		}
		doc.ID = id.DocumentID(docID)
		doc.RequestID = id.RequestID(reqID)
		out = append(out, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supporting documents: %w", err)
	}
	return out, nil
}
