package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/calderaops/answerd/pkg/llm"
	"github.com/calderaops/answerd/pkg/rag"
)

// noRAGDisclosure wraps answers produced without retrieved content. The exact
// bytes, whitespace included, are a compatibility surface; do not reformat.
const noRAGDisclosure = " The following response was generated without access to RAG content:\n\n            %s\n          "

const summarizerPromptTemplate = `You are an assistant for OpenShift and Kubernetes questions.
Answer the question using the reference passages below. If the passages do not
cover the question, say so.

Reference passages:
%s

Question:
%s

Answer:`

const plainPromptTemplate = `You are an assistant for OpenShift and Kubernetes questions.
Answer the following question.

Question:
%s

Answer:`

// Summarizer answers a validated query with one language-model invocation,
// optionally augmented with retrieved reference passages. No retries at this
// layer; transient provider errors propagate upward.
type Summarizer struct {
	chain     llm.Chain
	retriever rag.Retriever
	topK      int
	logger    zerolog.Logger
}

// NewSummarizer creates a docs summarizer. retriever may be nil when no
// reference index is configured; every call then takes the no-RAG path.
func NewSummarizer(chain llm.Chain, retriever rag.Retriever, topK int, logger zerolog.Logger) *Summarizer {
	if topK <= 0 {
		topK = 4
	}
	return &Summarizer{
		chain:     chain,
		retriever: retriever,
		topK:      topK,
		logger:    logger.With().Str("component", "docs-summarizer").Logger(),
	}
}

// Summarize produces the answer text. With RAG enabled the model output is
// returned verbatim; without it the output is wrapped in the disclosure
// template.
func (s *Summarizer) Summarize(ctx context.Context, conversationID, query string, ragEnabled bool) (string, error) {
	if ragEnabled && s.retriever != nil {
		return s.summarizeWithContext(ctx, conversationID, query)
	}
	return s.summarizeWithoutContext(ctx, conversationID, query)
}

func (s *Summarizer) summarizeWithContext(ctx context.Context, conversationID, query string) (string, error) {
	docs, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		return "", fmt.Errorf("reference retrieval failed: %w", err)
	}

	s.logger.Debug().
		Str("conversation_id", conversationID).
		Int("passages", len(docs)).
		Msg("retrieved reference passages")

	var passages strings.Builder
	for i, doc := range docs {
		if i > 0 {
			passages.WriteString("\n\n")
		}
		if doc.Source != "" {
			passages.WriteString("[" + doc.Source + "]\n")
		}
		passages.WriteString(doc.Content)
	}

	response, err := s.chain.Invoke(ctx, fmt.Sprintf(summarizerPromptTemplate, passages.String(), query))
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return response, nil
}

func (s *Summarizer) summarizeWithoutContext(ctx context.Context, conversationID, query string) (string, error) {
	response, err := s.chain.Invoke(ctx, fmt.Sprintf(plainPromptTemplate, query))
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	s.logger.Debug().
		Str("conversation_id", conversationID).
		Msg("answer generated without reference content")

	return fmt.Sprintf(noRAGDisclosure, response), nil
}
