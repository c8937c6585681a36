package employee

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
)

// PostgresStore persists employee profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const employeeColumns = `id, account_id, full_name, position, hire_date, supervisor, created_at`

func (s *PostgresStore) Create(ctx context.Context, employee *models.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(employee.ID), uuid.UUID(employee.AccountID), employee.FullName,
		employee.Position, employee.HireDate, employee.Supervisor, employee.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("employee profile already exists for account: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, uuid.UUID(employeeID))
	return scanEmployee(row)
}

func (s *PostgresStore) FindByAccount(ctx context.Context, accountID id.AccountID) (*models.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE account_id = $1`, uuid.UUID(accountID))
	return scanEmployee(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		var (
			employee   models.Employee
			employeeID uuid.UUID
			accountID  uuid.UUID
		)
		if err := rows.Scan(&employeeID, &accountID, &employee.FullName,
			&employee.Position, &employee.HireDate, &employee.Supervisor,
			&employee.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employee.ID = id.EmployeeID(employeeID)
		employee.AccountID = id.AccountID(accountID)
		employees = append(employees, &employee)
	}
	return employees, rows.Err()
}

func scanEmployee(row *sql.Row) (*models.Employee, error) {
	var (
		employee   models.Employee
		employeeID uuid.UUID
		accountID  uuid.UUID
	)
	err := row.Scan(&employeeID, &accountID, &employee.FullName, &employee.Position,
		&employee.HireDate, &employee.Supervisor, &employee.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("employee profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	employee.ID = id.EmployeeID(employeeID)
	employee.AccountID = id.AccountID(accountID)
	return &employee, nil
}
