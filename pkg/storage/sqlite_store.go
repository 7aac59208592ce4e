package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistoryStore is a persistent implementation of HistoryStore.
type SQLiteHistoryStore struct {
	db *sql.DB
}

// OpenSQLiteHistoryStore opens (creating if necessary) the transcript
// database at the given path.
func OpenSQLiteHistoryStore(path string) (*SQLiteHistoryStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		cache_key TEXT PRIMARY KEY,
		transcript TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	return &SQLiteHistoryStore{db: db}, nil
}

// InsertOrAppend appends an entry to the stored transcript.
func (s *SQLiteHistoryStore) InsertOrAppend(ctx context.Context, userID, conversationID, entry string) error {
	key, err := historyKey(userID, conversationID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcripts (cache_key, transcript) VALUES (?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			transcript = transcript || char(10) || excluded.transcript,
			updated_at = CURRENT_TIMESTAMP
	`, key, entry)
	if err != nil {
		return fmt.Errorf("appending transcript: %w", err)
	}
	return nil
}

// Get retrieves the stored transcript.
func (s *SQLiteHistoryStore) Get(ctx context.Context, userID, conversationID string) (string, bool, error) {
	key, err := historyKey(userID, conversationID)
	if err != nil {
		return "", false, err
	}

	var transcript string
	err = s.db.QueryRowContext(ctx, `SELECT transcript FROM transcripts WHERE cache_key = ?`, key).Scan(&transcript)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading transcript: %w", err)
	}
	return transcript, true, nil
}

// Close closes the underlying database.
func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}
