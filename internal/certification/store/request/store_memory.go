package request

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested request does not exist
// - Return ErrConflict when a request with the same ID already exists
// - Validation errors from Execute callbacks pass through unchanged

// Filters narrows List results. Zero values match everything.
type Filters struct {
	Status        models.Status
	TreatmentType string
	CompanyID     id.CompanyID
}

func (f Filters) matches(r *models.Request) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.TreatmentType != "" && r.TreatmentType != f.TreatmentType {
		return false
	}
	if !f.CompanyID.IsNil() && r.CompanyID != f.CompanyID {
		return false
	}
	return true
}

// InMemoryStore stores certification requests in memory for tests/dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.Request
}

// NewInMemory constructs an empty in-memory request store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("request already exists: %w", sentinel.ErrConflict)
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

// Execute atomically runs validateFn then mutateFn on the request while
// holding the store lock, so no concurrent Execute can interleave between
// validation and mutation. The version is bumped on every successful
// mutation. Validation errors pass through unchanged.
func (s *InMemoryStore) Execute(_ context.Context, requestID id.RequestID, validateFn func(*models.Request) error, mutateFn func(*models.Request)) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request not found: %w", sentinel.ErrNotFound)
	}
	if err := validateFn(r.Clone()); err != nil {
		return nil, err
	}
	mutateFn(r)
	r.Version++
	return r.Clone(), nil
}

func (s *InMemoryStore) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*models.Request, error) {
	return s.list(Filters{CompanyID: companyID})
}

func (s *InMemoryStore) List(_ context.Context, filters Filters) ([]*models.Request, error) {
	return s.list(filters)
}

func (s *InMemoryStore) list(filters Filters) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Request, 0)
	for _, r := range s.requests {
		if filters.matches(r) {
			out = append(out, r.Clone())
		}
	}
	// Newest submissions first, ID as tiebreaker for deterministic output.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmissionDate.Equal(out[j].SubmissionDate) {
			return out[i].SubmissionDate.After(out[j].SubmissionDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context, filters Filters) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.requests {
		if filters.matches(r) {
			count++
		}
	}
	return count, nil
}
