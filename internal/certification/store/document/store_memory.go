package document

import (
	"context"
	"sort"
	"sync"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
)

// InMemoryStore keeps supporting documents in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[id.RequestID][]*models.SupportingDocument
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{documents: make(map[id.RequestID][]*models.SupportingDocument)}
}

func (s *InMemoryStore) Add(_ context.Context, doc *models.SupportingDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *doc
	s.documents[doc.RequestID] = append(s.documents[doc.RequestID], &clone)
	return nil
}

// ListByRequest returns documents in upload order.
func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.RequestID) ([]*models.SupportingDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.documents[requestID]
	out := make([]*models.SupportingDocument, 0, len(stored))
	for _, doc := range stored {
		clone := *doc
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}
