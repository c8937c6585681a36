package history

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

// PostgresStore persists the request ledger in PostgreSQL. Rows are only
// ever inserted; the table carries no update path.
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

func (s *PostgresStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	var extra []byte
	if entry.Extra != nil {
		var err error
		extra, err = json.Marshal(entry.Extra)
		if err != nil {
			return fmt.Errorf("marshal history extra: %w", err)
		}
	}
	var performedBy any
	if entry.PerformedBy != nil {
		performedBy = uuid.UUID(*entry.PerformedBy)
	}
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO request_history (id, request_id, action, description, performed_by, occurred_at, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, uuid.UUID(entry.RequestID), string(entry.Action), entry.Description,
		performedBy, entry.Timestamp, extra)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID id.RequestID) ([]models.HistoryEntry, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, request_id, action, description, performed_by, occurred_at, extra
		FROM request_history
		WHERE request_id = $1
		ORDER BY occurred_at DESC, seq DESC
	`, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry       models.HistoryEntry
			reqID       uuid.UUID
			action      string
			performedBy uuid.NullUUID
			extra       []byte
		)
		if err := rows.Scan(&entry.ID, &reqID, &action, &entry.Description,
			&performedBy, &entry.Timestamp, &extra); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.RequestID = id.RequestID(reqID)
		entry.Action = models.HistoryAction(action)
		if performedBy.Valid {
			accountID := id.AccountID(performedBy.UUID)
			entry.PerformedBy = &accountID
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &entry.Extra); err != nil {
				return nil, fmt.Errorf("unmarshal history extra: %w", err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByAction(ctx context.Context, action models.HistoryAction) (int, error) {
	var count int
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM request_history WHERE action = $1`, string(action)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count history entries: %w", err)
	}
	return count, nil
}
