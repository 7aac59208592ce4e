// Package rag provides the reference-document retrieval index used to
// augment answer generation.
package rag

import "context"

// Document is one retrieved reference passage.
type Document struct {
	ID      string
	Content string
	Source  string
	Score   float64
}

// Retriever finds the reference passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
