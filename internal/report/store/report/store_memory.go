package report

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ecocert/internal/report/models"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
)

// InMemoryStore keeps generated reports in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[id.ReportID]*models.GeneratedReport
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{reports: make(map[id.ReportID]*models.GeneratedReport)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.GeneratedReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return fmt.Errorf("report already exists: %w", sentinel.ErrConflict)
	}
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, reportID id.ReportID) (*models.GeneratedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("report not found: %w", sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.GeneratedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.GeneratedReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
