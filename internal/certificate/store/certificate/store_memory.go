package certificate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ecocert/internal/certificate/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// InMemoryStore keeps certificates in memory for tests/dev. Uniqueness is
// enforced on both the request ID (one certificate per request) and the
// public number.
type InMemoryStore struct {
	mu        sync.RWMutex
	certs     map[id.CertificateID]*models.Certificate
	byRequest map[id.RequestID]id.CertificateID
	byNumber  map[string]id.CertificateID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		certs:     make(map[id.CertificateID]*models.Certificate),
		byRequest: make(map[id.RequestID]id.CertificateID),
		byNumber:  make(map[string]id.CertificateID),
	}
}

// CreateIfAbsent inserts the certificate unless its request already has one,
// in which case the existing certificate is returned alongside ErrConflict.
// A number collision with a different request is ErrAlreadyUsed so the
// caller can retry with a fresh ID.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, cert *models.Certificate) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byRequest[cert.RequestID]; ok {
		return s.certs[existingID].Clone(), fmt.Errorf("certificate already issued for request: %w", sentinel.ErrConflict)
	}
	if _, ok := s.byNumber[cert.Number]; ok {
		return nil, fmt.Errorf("certificate number already in use: %w", sentinel.ErrAlreadyUsed)
	}
	s.certs[cert.ID] = cert.Clone()
	s.byRequest[cert.RequestID] = cert.ID
	s.byNumber[cert.Number] = cert.ID
	return cert.Clone(), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[certificateID]
	if !ok {
		return nil, fmt.Errorf("certificate not found: %w", sentinel.ErrNotFound)
	}
	return cert.Clone(), nil
}

func (s *InMemoryStore) FindByRequest(_ context.Context, requestID id.RequestID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certificateID, ok := s.byRequest[requestID]
	if !ok {
		return nil, fmt.Errorf("certificate not found: %w", sentinel.ErrNotFound)
	}
	return s.certs[certificateID].Clone(), nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, number string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certificateID, ok := s.byNumber[number]
	if !ok {
		return nil, fmt.Errorf("certificate not found: %w", sentinel.ErrNotFound)
	}
	return s.certs[certificateID].Clone(), nil
}

func (s *InMemoryStore) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Certificate, 0)
	for _, cert := range s.certs {
		if cert.CompanyID == companyID {
			out = append(out, cert.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssueDate.Equal(out[j].IssueDate) {
			return out[i].IssueDate.After(out[j].IssueDate)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.certs[cert.ID]; !ok {
		return fmt.Errorf("certificate not found: %w", sentinel.ErrNotFound)
	}
	s.certs[cert.ID] = cert.Clone()
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.certs), nil
}
