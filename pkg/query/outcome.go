// Package query implements the question-answering pipeline: topic
// validation, conditional retrieval-augmented summarization, and the
// per-request orchestration state machine.
package query

import "context"

// Tag is the top-level validation verdict.
type Tag string

const (
	// TagValid marks a question inside the supported topic domain.
	TagValid Tag = "VALID"
	// TagInvalid marks a question outside the supported topic domain.
	TagInvalid Tag = "INVALID"
)

// Refinement routes a valid question to its answering mode. The zero value is
// the explicit unrecognized arm so that new tags are a visible gap in the
// orchestrator switch, never a silent fallthrough.
type Refinement int

const (
	// RefinementUnknown is an unrecognized detail produced by a stub or a
	// misbehaving classifier.
	RefinementUnknown Refinement = iota
	// RefinementNormal answers with retrieval-augmented generation.
	RefinementNormal
	// RefinementNoIndex answers without retrieved content and discloses that.
	RefinementNoIndex
	// RefinementClassifierFailure marks an unusable classifier reply.
	RefinementClassifierFailure
)

// String returns the refinement name for logs and metrics.
func (r Refinement) String() string {
	switch r {
	case RefinementNormal:
		return "normal"
	case RefinementNoIndex:
		return "no_index"
	case RefinementClassifierFailure:
		return "classifier_failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one validation call. Exactly one Tag is
// active; the Refinement is only meaningful when Tag is TagValid.
type Outcome struct {
	Tag        Tag
	Refinement Refinement
	Detail     string // raw classifier text, for logging only
}

// QuestionValidator classifies a query's topic.
type QuestionValidator interface {
	ValidateQuestion(ctx context.Context, conversationID, query string) (Outcome, error)
}

// DocsSummarizer produces the answer text for a validated query.
type DocsSummarizer interface {
	Summarize(ctx context.Context, conversationID, query string, ragEnabled bool) (string, error)
}
