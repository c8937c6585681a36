package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ecocert/internal/payment/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// InMemoryStore keeps payments in memory for tests/dev. One payment per
// request is enforced on insert.
type InMemoryStore struct {
	mu        sync.RWMutex
	payments  map[id.PaymentID]*models.Payment
	byRequest map[id.RequestID]id.PaymentID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		payments:  make(map[id.PaymentID]*models.Payment),
		byRequest: make(map[id.RequestID]id.PaymentID),
	}
}

// CreateIfAbsent inserts the payment unless its request already has one, in
// which case the existing payment is returned alongside ErrConflict.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, p *models.Payment) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byRequest[p.RequestID]; ok {
		return s.payments[existingID].Clone(), fmt.Errorf("payment already exists for request: %w", sentinel.ErrConflict)
	}
	s.payments[p.ID] = p.Clone()
	s.byRequest[p.RequestID] = p.ID
	return p.Clone(), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %w", sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) FindByRequest(_ context.Context, requestID id.RequestID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paymentID, ok := s.byRequest[requestID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %w", sentinel.ErrNotFound)
	}
	return s.payments[paymentID].Clone(), nil
}

// Execute atomically runs validateFn then mutateFn on the payment while
// holding the store lock. Settlement relies on this: under concurrent
// settles exactly one caller observes a pending payment.
func (s *InMemoryStore) Execute(_ context.Context, paymentID id.PaymentID, validateFn func(*models.Payment) error, mutateFn func(*models.Payment)) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %w", sentinel.ErrNotFound)
	}
	if err := validateFn(p.Clone()); err != nil {
		return nil, err
	}
	mutateFn(p)
	return p.Clone(), nil
}

func (s *InMemoryStore) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Payment, 0)
	for _, p := range s.payments {
		if p.CompanyID == companyID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.payments {
		if p.Status == status {
			count++
		}
	}
	return count, nil
}
