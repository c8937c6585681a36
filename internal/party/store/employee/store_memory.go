package employee

import (
	"context"
	"fmt"
	"sync"

	"ecocert/internal/party/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// InMemoryStore stores employee profiles in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.RWMutex
	byID      map[id.EmployeeID]*models.Employee
	byAccount map[id.AccountID]id.EmployeeID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[id.EmployeeID]*models.Employee),
		byAccount: make(map[id.AccountID]id.EmployeeID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, employee *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byAccount[employee.AccountID]; ok {
		return fmt.Errorf("employee profile already exists for account: %w", sentinel.ErrConflict)
	}
	s.byID[employee.ID] = clone(employee)
	s.byAccount[employee.AccountID] = employee.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if employee, ok := s.byID[employeeID]; ok {
		return clone(employee), nil
	}
	return nil, fmt.Errorf("employee profile not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByAccount(_ context.Context, accountID id.AccountID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if employeeID, ok := s.byAccount[accountID]; ok {
		return clone(s.byID[employeeID]), nil
	}
	return nil, fmt.Errorf("employee profile not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	employees := make([]*models.Employee, 0, len(s.byID))
	for _, employee := range s.byID {
		employees = append(employees, clone(employee))
	}
	return employees, nil
}

func clone(e *models.Employee) *models.Employee {
	if e == nil {
		return nil
	}
	ce := *e
	return &ce
}
