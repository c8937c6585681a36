package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ecocert/internal/party/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, password_hash, role, created_at, updated_at`

func (s *PostgresStore) CreateIfEmailAvailable(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(account.ID), strings.ToLower(account.Email), account.PasswordHash,
		string(account.Role), account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	return scanAccount(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, strings.ToLower(email))
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		account   models.Account
		accountID uuid.UUID
		role      string
	)
	err := row.Scan(&accountID, &account.Email, &account.PasswordHash, &role,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	account.ID = id.AccountID(accountID)
	account.Role = id.Role(role)
	return &account, nil
}
