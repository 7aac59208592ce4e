package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both implementations must behave identically against the HistoryStore
// contract, so the suite runs once per store.
func historyStores(t *testing.T) map[string]HistoryStore {
	t.Helper()

	sqlite, err := OpenSQLiteHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]HistoryStore{
		"memory": NewMemoryHistoryStore(),
		"sqlite": sqlite,
	}
}

func TestHistoryStore_InsertAndGet(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conversation := uuid.NewString()

			_, ok, err := store.Get(ctx, "user1", conversation)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.InsertOrAppend(ctx, "user1", conversation, "first entry"))

			transcript, ok, err := store.Get(ctx, "user1", conversation)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "first entry", transcript)
		})
	}
}

func TestHistoryStore_AppendJoinsWithNewline(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conversation := uuid.NewString()

			require.NoError(t, store.InsertOrAppend(ctx, "user1", conversation, "first entry"))
			require.NoError(t, store.InsertOrAppend(ctx, "user1", conversation, "second entry"))

			transcript, ok, err := store.Get(ctx, "user1", conversation)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "first entry\nsecond entry", transcript)
		})
	}
}

func TestHistoryStore_KeysAreIsolated(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conversationA := uuid.NewString()
			conversationB := uuid.NewString()

			require.NoError(t, store.InsertOrAppend(ctx, "user1", conversationA, "for A"))
			require.NoError(t, store.InsertOrAppend(ctx, "user2", conversationA, "for user2"))
			require.NoError(t, store.InsertOrAppend(ctx, "user1", conversationB, "for B"))

			transcript, ok, err := store.Get(ctx, "user1", conversationA)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "for A", transcript)
		})
	}
}

func TestHistoryStore_RejectsInvalidIDs(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conversation := uuid.NewString()

			err := store.InsertOrAppend(ctx, "", conversation, "entry")
			assert.ErrorIs(t, err, ErrInvalidUserID)

			err = store.InsertOrAppend(ctx, "user:improper", conversation, "entry")
			assert.ErrorIs(t, err, ErrInvalidUserID)

			err = store.InsertOrAppend(ctx, "user1", "not-a-uuid", "entry")
			assert.ErrorIs(t, err, ErrInvalidConversationID)

			_, _, err = store.Get(ctx, "user:improper", conversation)
			assert.ErrorIs(t, err, ErrInvalidUserID)

			_, _, err = store.Get(ctx, "user1", "not-a-uuid")
			assert.ErrorIs(t, err, ErrInvalidConversationID)
		})
	}
}

func TestSQLiteHistoryStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	conversation := uuid.NewString()

	store, err := OpenSQLiteHistoryStore(path)
	require.NoError(t, err)
	require.NoError(t, store.InsertOrAppend(ctx, "user1", conversation, "persisted"))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteHistoryStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	transcript, ok, err := reopened.Get(ctx, "user1", conversation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", transcript)
}
