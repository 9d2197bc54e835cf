package rules

import (
	"context"
	"fmt"
	"sync"

	"healthcert/pkg/platform/sentinel"
)

// InMemoryBlobStore holds configuration blobs in process memory, keyed by
// container and filename. Tests and development seeding use it.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewInMemoryBlobStore constructs an empty blob store.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string][]byte)}
}

// Put stores a blob, replacing any previous version.
func (s *InMemoryBlobStore) Put(container, filename string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[container+"/"+filename] = data
}

// Get returns a stored blob or sentinel.ErrNotFound.
func (s *InMemoryBlobStore) Get(_ context.Context, container, filename string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[container+"/"+filename]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s: %w", container, filename, sentinel.ErrNotFound)
	}
	return data, nil
}
