package history

import (
	"context"
	"sort"
	"sync"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
)

// InMemoryStore keeps the request ledger in memory for tests/dev. The ledger
// is append-only: there is no update or delete.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.RequestID][]models.HistoryEntry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.RequestID][]models.HistoryEntry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.RequestID] = append(s.entries[entry.RequestID], entry)
	return nil
}

// ListByRequest returns the ledger newest-first. A stable ascending sort
// followed by a reversal keeps later appends ahead of earlier ones when
// timestamps are equal.
func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.RequestID) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[requestID]
	out := make([]models.HistoryEntry, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountByAction tallies ledger entries per action across all requests.
func (s *InMemoryStore) CountByAction(_ context.Context, action models.HistoryAction) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entries := range s.entries {
		for _, entry := range entries {
			if entry.Action == action {
				count++
			}
		}
	}
	return count, nil
}
