package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderaops/answerd/pkg/auth"
	"github.com/calderaops/answerd/pkg/query"
)

type fixedChain struct {
	reply string
	err   error
}

func (c *fixedChain) Invoke(context.Context, string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

type fixedValidator struct {
	outcome query.Outcome
	err     error
}

func (v *fixedValidator) ValidateQuestion(context.Context, string, string) (query.Outcome, error) {
	return v.outcome, v.err
}

type fixedSummarizer struct {
	response string
	err      error
}

func (s *fixedSummarizer) Summarize(context.Context, string, string, bool) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestServer(validator query.QuestionValidator, summarizer query.DocsSummarizer, chain *fixedChain, gate *auth.Gate) *httptest.Server {
	orch := query.NewOrchestrator(validator, summarizer, chain, nil, zerolog.Nop())
	srv := New(orch, gate, nil, zerolog.Nop())
	return httptest.NewServer(srv.Routes())
}

func answeringServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	ts := newTestServer(
		&fixedValidator{outcome: query.Outcome{Tag: query.TagValid, Refinement: query.RefinementNormal}},
		&fixedSummarizer{response: response},
		&fixedChain{reply: response},
		nil)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestServer_Root(t *testing.T) {
	ts := answeringServer(t, "answer")

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"message": "Answering gateway for OpenShift and Kubernetes questions",
		"status":  "running",
	}, decodeBody(t, resp))
}

func TestServer_Probes(t *testing.T) {
	ts := answeringServer(t, "answer")

	for _, path := range []string{"/liveness", "/readiness"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, map[string]any{"status": "1"}, decodeBody(t, resp), path)
		_ = resp.Body.Close()
	}
}

func TestServer_QuerySuccess(t *testing.T) {
	ts := answeringServer(t, "the answer")

	resp := postJSON(t, ts.URL+"/v1/query", `{"conversation_id":"1234","query":"how do I scale?"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, map[string]any{
		"conversation_id": "1234",
		"query":           "how do I scale?",
		"response":        "the answer",
	}, decodeBody(t, resp))
}

func TestServer_QueryInvalidTopic(t *testing.T) {
	ts := newTestServer(
		&fixedValidator{outcome: query.Outcome{Tag: query.TagInvalid}},
		&fixedSummarizer{}, &fixedChain{}, nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/query", `{"conversation_id":"1234","query":"what is the weather?"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	assert.Equal(t, map[string]any{
		"detail": map[string]any{
			"response": query.InvalidTopicResponse,
		},
	}, decodeBody(t, resp))
}

func TestServer_QueryInternalError(t *testing.T) {
	ts := newTestServer(
		&fixedValidator{err: errors.New("provider unreachable")},
		&fixedSummarizer{}, &fixedChain{}, nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/query", `{"conversation_id":"1234","query":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	assert.Equal(t, map[string]any{
		"detail": map[string]any{
			"response": query.InternalErrorResponse,
		},
	}, decodeBody(t, resp))
}

func TestServer_MalformedBodyEchoedInSchemaError(t *testing.T) {
	ts := answeringServer(t, "answer")

	resp := postJSON(t, ts.URL+"/v1/query", `this is really not proper payload`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	assert.Equal(t, map[string]any{
		"detail": []any{
			map[string]any{
				"input": "this is really not proper payload",
				"loc":   []any{"body"},
				"msg":   "Input should be a valid dictionary or object to extract fields from",
				"type":  "model_attributes_type",
				"url":   "https://errors.pydantic.dev/2.5/v/model_attributes_type",
			},
		},
	}, decodeBody(t, resp))
}

func TestServer_NonObjectBodyRejected(t *testing.T) {
	ts := answeringServer(t, "answer")

	for _, body := range []string{`"just a string"`, `[1,2,3]`, `42`} {
		resp := postJSON(t, ts.URL+"/v1/query", body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)

		decoded := decodeBody(t, resp)
		detail, ok := decoded["detail"].([]any)
		require.True(t, ok, body)
		require.Len(t, detail, 1, body)
	}
}

func TestServer_DebugQuery(t *testing.T) {
	ts := newTestServer(
		&fixedValidator{outcome: query.Outcome{Tag: query.TagInvalid}},
		&fixedSummarizer{},
		&fixedChain{reply: "raw output"},
		nil)
	defer ts.Close()

	// The debug path skips topic validation entirely.
	resp := postJSON(t, ts.URL+"/v1/debug/query", `{"conversation_id":"1234","query":"say anything"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, map[string]any{
		"conversation_id": "1234",
		"query":           "say anything",
		"response":        "raw output",
	}, decodeBody(t, resp))
}

type rejectAllTokens struct{}

func (rejectAllTokens) ReviewToken(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, errors.New("invalid token")
}

type allowAllAccess struct{}

func (allowAllAccess) ReviewAccess(context.Context, auth.Identity) (bool, error) {
	return true, nil
}

func TestServer_GateProtectsQueryEndpoints(t *testing.T) {
	verifier := auth.NewVerifier(rejectAllTokens{}, allowAllAccess{}, zerolog.Nop())
	gate := auth.NewGate(verifier, true, zerolog.Nop())

	ts := newTestServer(
		&fixedValidator{outcome: query.Outcome{Tag: query.TagValid, Refinement: query.RefinementNormal}},
		&fixedSummarizer{response: "answer"}, &fixedChain{}, gate)
	defer ts.Close()

	// Probes are outside the gate.
	resp, err := http.Get(ts.URL + "/readiness")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Query endpoints require a credential.
	resp = postJSON(t, ts.URL+"/v1/query", `{"conversation_id":"1234","query":"q"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"detail": "Unauthorized: no auth header found",
	}, decodeBody(t, resp))
}
