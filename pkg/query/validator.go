package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/calderaops/answerd/pkg/llm"
)

const validatorPromptTemplate = `Instructions:
- Determine if a question is related to OpenShift or Kubernetes.
- Reply with a single word: VALID if the question is about OpenShift or Kubernetes, INVALID otherwise.
- Do not explain your answer.

Question:
%s

Answer:`

// Validator classifies a query's topic through one language-model call. It
// performs no retries; a failing classification propagates to the
// orchestrator as an internal failure.
type Validator struct {
	chain          llm.Chain
	indexAvailable bool
	logger         zerolog.Logger
}

// NewValidator creates a topic validator. indexAvailable selects whether
// valid questions route to retrieval-augmented answering or to the
// no-index disclosure path.
func NewValidator(chain llm.Chain, indexAvailable bool, logger zerolog.Logger) *Validator {
	return &Validator{
		chain:          chain,
		indexAvailable: indexAvailable,
		logger:         logger.With().Str("component", "question-validator").Logger(),
	}
}

// ValidateQuestion classifies the query and returns the tagged outcome.
func (v *Validator) ValidateQuestion(ctx context.Context, conversationID, query string) (Outcome, error) {
	reply, err := v.chain.Invoke(ctx, fmt.Sprintf(validatorPromptTemplate, query))
	if err != nil {
		return Outcome{}, fmt.Errorf("question classification failed: %w", err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(reply))
	v.logger.Debug().
		Str("conversation_id", conversationID).
		Str("verdict", verdict).
		Msg("question classified")

	switch {
	case strings.HasPrefix(verdict, string(TagInvalid)):
		return Outcome{Tag: TagInvalid, Detail: reply}, nil
	case strings.HasPrefix(verdict, string(TagValid)):
		refinement := RefinementNormal
		if !v.indexAvailable {
			refinement = RefinementNoIndex
		}
		return Outcome{Tag: TagValid, Refinement: refinement, Detail: reply}, nil
	default:
		// The classifier answered, but not with anything usable. Nominally
		// valid with a failure refinement, so the orchestrator surfaces it
		// as an internal error.
		v.logger.Warn().
			Str("conversation_id", conversationID).
			Str("reply", reply).
			Msg("classifier returned unusable verdict")
		return Outcome{Tag: TagValid, Refinement: RefinementClassifierFailure, Detail: reply}, nil
	}
}
