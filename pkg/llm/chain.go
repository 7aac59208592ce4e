// Package llm provides the language-model chain client used by the question
// validator and the docs summarizer.
package llm

import (
	"context"
)

// Chain is the capability interface for one language-model invocation.
// Implementations must propagate context cancellation to the provider call.
type Chain interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Embedder produces an embedding vector for a text fragment. The retrieval
// index uses it to embed queries and documents with the same model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
