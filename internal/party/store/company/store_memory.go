package company

import (
	"context"
	"fmt"
	"sync"

	"ecocert/internal/party/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when a uniqueness constraint would be violated
// - Return nil for successful operations

// InMemoryStore stores company profiles in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.RWMutex
	byID      map[id.CompanyID]*models.CompanyProfile
	byAccount map[id.AccountID]id.CompanyID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[id.CompanyID]*models.CompanyProfile),
		byAccount: make(map[id.AccountID]id.CompanyID),
	}
}

// CreateIfAbsent persists the profile unless the account already has one,
// in which case the existing profile is returned with ErrConflict.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, profile *models.CompanyProfile) (*models.CompanyProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byAccount[profile.AccountID]; ok {
		return clone(s.byID[existingID]), fmt.Errorf("company profile already exists for account: %w", sentinel.ErrConflict)
	}
	s.byID[profile.ID] = clone(profile)
	s.byAccount[profile.AccountID] = profile.ID
	return clone(profile), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, companyID id.CompanyID) (*models.CompanyProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if profile, ok := s.byID[companyID]; ok {
		return clone(profile), nil
	}
	return nil, fmt.Errorf("company profile not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByAccount(_ context.Context, accountID id.AccountID) (*models.CompanyProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if companyID, ok := s.byAccount[accountID]; ok {
		return clone(s.byID[companyID]), nil
	}
	return nil, fmt.Errorf("company profile not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) Update(_ context.Context, profile *models.CompanyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[profile.ID]; !ok {
		return fmt.Errorf("company profile not found: %w", sentinel.ErrNotFound)
	}
	s.byID[profile.ID] = clone(profile)
	return nil
}

func clone(p *models.CompanyProfile) *models.CompanyProfile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
