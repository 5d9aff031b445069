// ABOUTME: In-memory Store implementation backed by a process-local map.
// ABOUTME: Safe for concurrent access; suited for tests and ephemeral demo hosts.

package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is a volatile Store keeping serialized records in memory. Each
// Get decodes a fresh copy so callers never mutate stored state directly.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Get returns the stored record or creates one via factory.
func (s *MemoryStore) Get(ctx context.Context, conversationID string, factory Factory) (*ConversationRecord, error) {
	s.mu.RLock()
	raw, ok := s.records[conversationID]
	s.mu.RUnlock()

	if !ok {
		if factory == nil {
			return nil, ErrNotFound
		}
		return factory(conversationID), nil
	}

	var record ConversationRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decoding record for %s: %w", conversationID, err)
	}
	return &record, nil
}

// Save stores the serialized record. Unchanged records are skipped unless
// force is set, matching the SQLite store's change detection.
func (s *MemoryStore) Save(ctx context.Context, record *ConversationRecord, force bool) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record for %s: %w", record.ConversationID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !force {
		if existing, ok := s.records[record.ConversationID]; ok && bytes.Equal(existing, raw) {
			return nil
		}
	}
	s.records[record.ConversationID] = raw
	return nil
}

// Clear removes the record for a conversation.
func (s *MemoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, conversationID)
	return nil
}
