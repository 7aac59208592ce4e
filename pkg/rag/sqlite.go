package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/calderaops/answerd/pkg/llm"
)

// SQLiteIndex is a persistent reference index backed by SQLite. Passages are
// stored with their embeddings; retrieval embeds the query and ranks by
// cosine similarity.
type SQLiteIndex struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder llm.Embedder
}

// OpenSQLiteIndex opens (creating if necessary) the index at the given path.
func OpenSQLiteIndex(path string, embedder llm.Embedder) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	index := &SQLiteIndex{db: db, embedder: embedder}
	if err := index.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}

	return index, nil
}

func (ix *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS passages (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source);
	`
	_, err := ix.db.Exec(schema)
	return err
}

// Add stores passages with freshly computed embeddings.
func (ix *SQLiteIndex) Add(ctx context.Context, docs []Document) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO passages (id, content, source, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		embedding, err := ix.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embedding passage %s: %w", doc.ID, err)
		}
		encoded, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Content, doc.Source, encoded); err != nil {
			return fmt.Errorf("inserting passage: %w", err)
		}
	}

	return tx.Commit()
}

// Retrieve embeds the query and returns the topK most similar passages.
// Similarity is brute-force cosine over all stored passages.
func (ix *SQLiteIndex) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	queryEmbedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rows, err := ix.db.QueryContext(ctx, `SELECT id, content, source, embedding FROM passages`)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Document
	for rows.Next() {
		var doc Document
		var encoded []byte
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &encoded); err != nil {
			return nil, fmt.Errorf("scanning passage row: %w", err)
		}

		var embedding []float32
		if err := json.Unmarshal(encoded, &embedding); err != nil {
			continue // Skip corrupted embeddings
		}

		doc.Score = cosineSimilarity(queryEmbedding, embedding)
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Count returns the number of stored passages.
func (ix *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count)
	return count, err
}

// Close closes the underlying database.
func (ix *SQLiteIndex) Close() error {
	return ix.db.Close()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
