package company

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ecocert/internal/party/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
	txcontext "ecocert/pkg/platform/tx"
)

// PostgresStore persists company profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const companyColumns = `id, account_id, business_name, ice, rc, legal_representative, address, phone, description, created_at, updated_at`

// CreateIfAbsent inserts the profile; a unique violation on account_id means
// the account already has a profile, which is loaded and returned alongside
// ErrConflict.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, profile *models.CompanyProfile) (*models.CompanyProfile, error) {
	query := `
		INSERT INTO company_profiles (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(profile.ID), uuid.UUID(profile.AccountID), profile.BusinessName,
		profile.ICE, profile.RC, profile.LegalRepresentative,
		profile.Address, profile.Phone, profile.Description,
		profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			existing, findErr := s.FindByAccount(ctx, profile.AccountID)
			if findErr != nil {
				return nil, fmt.Errorf("load existing company profile: %w", findErr)
			}
			return existing, fmt.Errorf("company profile already exists for account: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert company profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, companyID id.CompanyID) (*models.CompanyProfile, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM company_profiles WHERE id = $1`, uuid.UUID(companyID))
	return scanCompany(row)
}

func (s *PostgresStore) FindByAccount(ctx context.Context, accountID id.AccountID) (*models.CompanyProfile, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM company_profiles WHERE account_id = $1`, uuid.UUID(accountID))
	return scanCompany(row)
}

func (s *PostgresStore) Update(ctx context.Context, profile *models.CompanyProfile) error {
	result, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE company_profiles
		SET business_name = $2, ice = $3, rc = $4, legal_representative = $5,
			address = $6, phone = $7, description = $8, updated_at = $9
		WHERE id = $1
	`, uuid.UUID(profile.ID), profile.BusinessName, profile.ICE, profile.RC,
		profile.LegalRepresentative, profile.Address, profile.Phone,
		profile.Description, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update company profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update company profile: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("company profile not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func scanCompany(row *sql.Row) (*models.CompanyProfile, error) {
	var (
		profile   models.CompanyProfile
		companyID uuid.UUID
		accountID uuid.UUID
	)
	err := row.Scan(&companyID, &accountID, &profile.BusinessName, &profile.ICE,
		&profile.RC, &profile.LegalRepresentative, &profile.Address,
		&profile.Phone, &profile.Description, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan company profile: %w", err)
	}
	profile.ID = id.CompanyID(companyID)
	profile.AccountID = id.AccountID(accountID)
	return &profile, nil
}
