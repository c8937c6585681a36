// Package docstore abstracts the external document storage collaborator.
// The certification core only ever passes opaque URLs around; resolving a
// URL back into bytes happens here.
package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ecocert/pkg/platform/sentinel"
)

// Store puts and gets raw document bytes. Put returns the URL under which
// the document can later be fetched.
type Store interface {
	Put(ctx context.Context, content []byte, path string) (string, error)
	Get(ctx context.Context, url string) ([]byte, error)
}

const memoryScheme = "memstore://"

// InMemoryStore keeps documents in process memory for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, content []byte, path string) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return "", fmt.Errorf("document path is empty")
	}

	stored := make([]byte, len(content))
	copy(stored, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = stored
	return memoryScheme + path, nil
}

func (s *InMemoryStore) Get(_ context.Context, url string) ([]byte, error) {
	path, ok := strings.CutPrefix(url, memoryScheme)
	if !ok {
		return nil, fmt.Errorf("unrecognized document url %q: %w", url, sentinel.ErrNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("document not found: %w", sentinel.ErrNotFound)
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}
