package storage

import (
	"context"
	"sync"
)

// MemoryHistoryStore is an in-memory implementation of HistoryStore.
type MemoryHistoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]string
}

// NewMemoryHistoryStore creates a new MemoryHistoryStore.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		transcripts: make(map[string]string),
	}
}

// InsertOrAppend appends an entry to the transcript in memory.
func (s *MemoryHistoryStore) InsertOrAppend(_ context.Context, userID, conversationID, entry string) error {
	key, err := historyKey(userID, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.transcripts[key]; ok {
		s.transcripts[key] = existing + "\n" + entry
	} else {
		s.transcripts[key] = entry
	}
	return nil
}

// Get retrieves a transcript from memory.
func (s *MemoryHistoryStore) Get(_ context.Context, userID, conversationID string) (string, bool, error) {
	key, err := historyKey(userID, conversationID)
	if err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, ok := s.transcripts[key]
	return transcript, ok, nil
}
