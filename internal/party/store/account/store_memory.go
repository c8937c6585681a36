package account

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ecocert/internal/party/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// InMemoryStore stores accounts in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.AccountID]*models.Account
	byEmail map[string]id.AccountID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.AccountID]*models.Account),
		byEmail: make(map[string]id.AccountID),
	}
}

// CreateIfEmailAvailable persists the account unless the email is taken.
func (s *InMemoryStore) CreateIfEmailAvailable(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(account.Email)
	if _, ok := s.byEmail[email]; ok {
		return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	}
	s.byID[account.ID] = clone(account)
	s.byEmail[email] = account.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if account, ok := s.byID[accountID]; ok {
		return clone(account), nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if accountID, ok := s.byEmail[strings.ToLower(email)]; ok {
		return clone(s.byID[accountID]), nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func clone(a *models.Account) *models.Account {
	if a == nil {
		return nil
	}
	ca := *a
	return &ca
}
