package query

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/calderaops/answerd/pkg/auth"
	"github.com/calderaops/answerd/pkg/llm"
	"github.com/calderaops/answerd/pkg/storage"
	"github.com/calderaops/answerd/pkg/telemetry"
)

// Fixed user-facing messages. Both are compatibility surfaces.
const (
	InvalidTopicResponse  = "Sorry, I can only answer questions about OpenShift and Kubernetes. This does not look like something I know how to handle."
	InternalErrorResponse = "Internal server error. Please try again."
)

// Request is a caller-supplied query bound to a conversation. The
// conversation id is an opaque correlation key; no server-side history is
// consulted when answering.
type Request struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// Answer is the successful response shape.
type Answer struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	Response       string `json:"response"`
}

// StatusError carries the HTTP status and the fixed user-facing message for
// a terminated request. The underlying cause is logged, never disclosed.
type StatusError struct {
	Code     int
	Response string
}

func (e *StatusError) Error() string {
	return e.Response
}

// Orchestrator sequences validation, summarization and response assembly for
// one request, and maps every failure to a specific status and payload.
type Orchestrator struct {
	validator  QuestionValidator
	summarizer DocsSummarizer
	chain      llm.Chain
	history    storage.HistoryStore
	logger     zerolog.Logger
}

// NewOrchestrator creates the per-request coordinator. chain serves the debug
// path only. history may be nil; transcripts are then not recorded.
func NewOrchestrator(validator QuestionValidator, summarizer DocsSummarizer, chain llm.Chain, history storage.HistoryStore, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		validator:  validator,
		summarizer: summarizer,
		chain:      chain,
		history:    history,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
	}
}

// HandleQuery runs the validated answering path: validate topic, branch on
// the refinement, summarize, assemble the response.
func (o *Orchestrator) HandleQuery(ctx context.Context, req Request) (Answer, *StatusError) {
	start := time.Now()

	outcome, err := o.validator.ValidateQuestion(ctx, req.ConversationID, req.Query)
	if err != nil {
		o.logger.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("question validation errored")
		o.record(ctx, "validation_error", start)
		return Answer{}, &StatusError{Code: http.StatusInternalServerError, Response: InternalErrorResponse}
	}

	if outcome.Tag == TagInvalid {
		o.logger.Info().
			Str("conversation_id", req.ConversationID).
			Str("detail", outcome.Detail).
			Msg("question rejected as out of domain")
		o.record(ctx, "topic_rejected", start)
		return Answer{}, &StatusError{Code: http.StatusUnprocessableEntity, Response: InvalidTopicResponse}
	}

	var ragEnabled bool
	switch outcome.Refinement {
	case RefinementNormal:
		ragEnabled = true
	case RefinementNoIndex:
		ragEnabled = false
	default:
		// Covers classifier failures and unrecognized refinements. Kept as a
		// 500 for compatibility even though the question was nominally valid.
		o.logger.Error().
			Str("conversation_id", req.ConversationID).
			Str("refinement", outcome.Refinement.String()).
			Str("detail", outcome.Detail).
			Msg("validator produced unusable refinement")
		o.record(ctx, "classification_anomaly", start)
		return Answer{}, &StatusError{Code: http.StatusInternalServerError, Response: InternalErrorResponse}
	}

	response, err := o.summarizer.Summarize(ctx, req.ConversationID, req.Query, ragEnabled)
	if err != nil {
		o.logger.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("summarization errored")
		o.record(ctx, "downstream_failure", start)
		return Answer{}, &StatusError{Code: http.StatusInternalServerError, Response: InternalErrorResponse}
	}

	o.recordTranscript(ctx, req, response)
	o.record(ctx, "answered", start)

	return Answer{
		ConversationID: req.ConversationID,
		Query:          req.Query,
		Response:       response,
	}, nil
}

// HandleDebugQuery runs the raw-prompt path: no topic filtering, no RAG. It
// performs no authorization beyond what the gate already applied.
func (o *Orchestrator) HandleDebugQuery(ctx context.Context, req Request) (Answer, *StatusError) {
	start := time.Now()

	response, err := o.chain.Invoke(ctx, req.Query)
	if err != nil {
		o.logger.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("raw prompt invocation errored")
		o.record(ctx, "downstream_failure", start)
		return Answer{}, &StatusError{Code: http.StatusInternalServerError, Response: InternalErrorResponse}
	}

	o.record(ctx, "answered_debug", start)

	return Answer{
		ConversationID: req.ConversationID,
		Query:          req.Query,
		Response:       response,
	}, nil
}

// recordTranscript appends the exchange to the conversation transcript.
// Recording is best-effort and never alters the response.
func (o *Orchestrator) recordTranscript(ctx context.Context, req Request, response string) {
	if o.history == nil {
		return
	}

	userID := "anonymous"
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		userID = identity.UserUID
	}

	entry := req.Query + "\n" + response
	if err := o.history.InsertOrAppend(ctx, userID, req.ConversationID, entry); err != nil {
		o.logger.Debug().Err(err).
			Str("conversation_id", req.ConversationID).
			Msg("transcript not recorded")
	}
}

func (o *Orchestrator) record(ctx context.Context, outcome string, start time.Time) {
	telemetry.RecordQueryMetrics(ctx, telemetry.QueryMetrics{
		Outcome:  outcome,
		Duration: time.Since(start),
	})
}
