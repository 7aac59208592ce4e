// Package storage provides the conversation transcript stores. Transcripts
// are append-only records keyed by user and conversation; they never feed
// back into answer generation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUserID indicates a user id that cannot form a cache key.
	ErrInvalidUserID = errors.New("invalid user ID")

	// ErrInvalidConversationID indicates a conversation id that is not a
	// canonical UUID.
	ErrInvalidConversationID = errors.New("invalid conversation ID")
)

// HistoryStore records conversation transcripts.
type HistoryStore interface {
	// InsertOrAppend appends an entry to the transcript for the given user
	// and conversation, creating it if absent. Entries are joined by newlines.
	InsertOrAppend(ctx context.Context, userID, conversationID, entry string) error

	// Get returns the transcript, or ok=false when none exists.
	Get(ctx context.Context, userID, conversationID string) (transcript string, ok bool, err error)
}

// historyKey builds the composite cache key. User ids must not contain the
// separator; conversation ids must be canonical UUIDs.
func historyKey(userID, conversationID string) (string, error) {
	if userID == "" || strings.Contains(userID, ":") {
		return "", fmt.Errorf("%w %s", ErrInvalidUserID, userID)
	}
	if _, err := uuid.Parse(conversationID); err != nil {
		return "", fmt.Errorf("%w %s", ErrInvalidConversationID, conversationID)
	}
	return userID + ":" + conversationID, nil
}
