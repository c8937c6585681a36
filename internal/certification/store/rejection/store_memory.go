package rejection

import (
	"context"
	"sort"
	"sync"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
)

// InMemoryStore keeps rejection reports in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[id.RequestID][]*models.RejectionReport
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{reports: make(map[id.RequestID][]*models.RejectionReport)}
}

func (s *InMemoryStore) Create(_ context.Context, report *models.RejectionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *report
	s.reports[report.RequestID] = append(s.reports[report.RequestID], &clone)
	return nil
}

// ListByRequest returns all rejection reports for a request, newest first. A
// request rejected and resubmitted several times accumulates one per cycle.
func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.RequestID) ([]*models.RejectionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.reports[requestID]
	out := make([]*models.RejectionReport, 0, len(stored))
	for _, report := range stored {
		clone := *report
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}
