package memory

import (
	"context"
	"sync"

	"ecocert/internal/notification"
	id "ecocert/pkg/domain"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.RequestID][]notification.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.RequestID][]notification.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.RequestID][]notification.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event notification.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RequestID] = append(s.events[event.RequestID], event)
	return nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.RequestID) ([]notification.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notification.Event{}, s.events[requestID]...), nil
}

// ListAll returns all events across all requests.
func (s *InMemoryStore) ListAll(_ context.Context) ([]notification.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []notification.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}
