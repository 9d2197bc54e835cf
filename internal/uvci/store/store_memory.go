package store

import (
	"context"
	"fmt"
	"sync"

	"healthcert/internal/uvci"
	"healthcert/pkg/platform/sentinel"
)

// InMemoryStore keeps issued identifiers in process memory. Unit tests and
// single-node development use it in place of PostgreSQL.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]uvci.Record
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]uvci.Record)}
}

// Insert records the identifier, failing with sentinel.ErrConflict when it
// already exists.
func (s *InMemoryStore) Insert(_ context.Context, record uvci.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.UVCI]; exists {
		return fmt.Errorf("uvci %q: %w", record.UVCI, sentinel.ErrConflict)
	}
	s.records[record.UVCI] = record
	return nil
}

// Len reports how many identifiers have been recorded.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
