package form

import (
	"context"
	"sort"
	"sync"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
)

// InMemoryStore keeps form submissions in memory for tests/dev.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions map[id.RequestID][]*models.FormSubmission
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{submissions: make(map[id.RequestID][]*models.FormSubmission)}
}

func (s *InMemoryStore) Add(_ context.Context, sub *models.FormSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *sub
	clone.Answers = cloneAnswers(sub.Answers)
	s.submissions[sub.RequestID] = append(s.submissions[sub.RequestID], &clone)
	return nil
}

// ListByRequest returns form submissions in submission order.
func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.RequestID) ([]*models.FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.submissions[requestID]
	out := make([]*models.FormSubmission, 0, len(stored))
	for _, sub := range stored {
		clone := *sub
		clone.Answers = cloneAnswers(sub.Answers)
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func cloneAnswers(answers map[string]any) map[string]any {
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}
