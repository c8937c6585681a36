// Package service orchestrates the party registry: account registration,
// authentication, and company profile resolution for the workflow engine.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ecocert/internal/party/models"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/email"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/requestcontext"
	"ecocert/pkg/secrets"
)

type AccountStore interface {
	CreateIfEmailAvailable(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

type CompanyStore interface {
	CreateIfAbsent(ctx context.Context, profile *models.CompanyProfile) (*models.CompanyProfile, error)
	FindByID(ctx context.Context, companyID id.CompanyID) (*models.CompanyProfile, error)
	FindByAccount(ctx context.Context, accountID id.AccountID) (*models.CompanyProfile, error)
	Update(ctx context.Context, profile *models.CompanyProfile) error
}

type EmployeeStore interface {
	Create(ctx context.Context, employee *models.Employee) error
	FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)
	FindByAccount(ctx context.Context, accountID id.AccountID) (*models.Employee, error)
	List(ctx context.Context) ([]*models.Employee, error)
}

// Service orchestrates account and profile management.
type Service struct {
	accounts  AccountStore
	companies CompanyStore
	employees EmployeeStore
	logger    *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a Service.
func New(accounts AccountStore, companies CompanyStore, employees EmployeeStore, opts ...Option) *Service {
	s := &Service{
		accounts:  accounts,
		companies: companies,
		employees: employees,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterAccount creates an account with a hashed password. The cleartext
// password never leaves this method.
func (s *Service) RegisterAccount(ctx context.Context, email, password string, role id.Role) (*models.Account, error) {
	if len(password) < 8 {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	account, err := models.NewAccount(id.AccountID(uuid.New()), email, hash, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.accounts.CreateIfEmailAvailable(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}
	return account, nil
}

// Authenticate verifies the password and resolves the account into a typed
// actor, loading the role-specific profile reference.
func (s *Service) Authenticate(ctx context.Context, email, password string) (id.Actor, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return id.Actor{}, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return id.Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	if !secrets.Verify(account.PasswordHash, password) {
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	return s.ActorFor(ctx, account)
}

// ActorFor resolves an account into the actor shape the workflow engine
// consumes: role plus the linked profile ID where one exists.
func (s *Service) ActorFor(ctx context.Context, account *models.Account) (id.Actor, error) {
	actor := id.Actor{AccountID: account.ID, Role: account.Role}
	switch account.Role {
	case id.RoleEnterprise:
		profile, err := s.companies.FindByAccount(ctx, account.ID)
		if err == nil {
			actor.CompanyID = profile.ID
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return id.Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company profile")
		}
		// No profile yet: the profile is created on first submission.
	case id.RoleEmployee, id.RoleAuthority:
		profile, err := s.employees.FindByAccount(ctx, account.ID)
		if err == nil {
			actor.EmployeeID = profile.ID
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return id.Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee profile")
		}
	}
	return actor, nil
}

// GetOrCreateCompanyProfile returns the actor's company profile, creating it
// from submission hints when the enterprise has none yet. Concurrent first
// submissions converge on one profile: the store's uniqueness guard makes
// the loser adopt the winner's profile.
func (s *Service) GetOrCreateCompanyProfile(ctx context.Context, actor id.Actor, hints models.ProfileHints) (*models.CompanyProfile, error) {
	if actor.Role != id.RoleEnterprise {
		return nil, dErrors.New(dErrors.CodeForbidden, "only enterprise accounts have company profiles")
	}

	profile, err := s.companies.FindByAccount(ctx, actor.AccountID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company profile")
	}

	created, err := models.NewCompanyProfile(id.CompanyID(uuid.New()), actor.AccountID, hints, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, "companyName is required")
		}
		return nil, err
	}

	persisted, err := s.companies.CreateIfAbsent(ctx, created)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) && persisted != nil {
			// Lost the race: another submission created it first.
			return persisted, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create company profile")
	}

	s.logger.InfoContext(ctx, "company profile created",
		"company_id", persisted.ID,
		"account_id", actor.AccountID,
	)
	return persisted, nil
}

// GetCompany loads a company profile by ID.
func (s *Service) GetCompany(ctx context.Context, companyID id.CompanyID) (*models.CompanyProfile, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "company ID is required")
	}
	profile, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "company not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load company")
	}
	return profile, nil
}

// RegisterEmployee attaches a reviewer profile to an existing account.
func (s *Service) RegisterEmployee(ctx context.Context, accountID id.AccountID, fullName, position string) (*models.Employee, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if account.Role != id.RoleEmployee && account.Role != id.RoleAuthority {
		return nil, dErrors.New(dErrors.CodeForbidden, "account role does not allow an employee profile")
	}
	if strings.TrimSpace(fullName) == "" {
		// Fall back to a display name derived from the account email.
		first, last := email.DeriveNameFromEmail(account.Email)
		fullName = first + " " + last
	}

	now := requestcontext.Now(ctx)
	employee := &models.Employee{
		ID:        id.EmployeeID(uuid.New()),
		AccountID: accountID,
		FullName:  strings.TrimSpace(fullName),
		Position:  strings.TrimSpace(position),
		HireDate:  now,
		CreatedAt: now,
	}
	if err := s.employees.Create(ctx, employee); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already has an employee profile")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create employee profile")
	}
	return employee, nil
}
