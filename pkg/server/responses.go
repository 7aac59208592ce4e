package server

import (
	"encoding/json"
	"net/http"
)

// statusBody is the payload for the liveness and readiness probes.
type statusBody struct {
	Status string `json:"status"`
}

// rootBody is the payload for the root status endpoint.
type rootBody struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// errorBody wraps a fixed user-facing failure reason.
type errorBody struct {
	Response string `json:"response"`
}

// fieldError reproduces the boundary schema-validation error shape. All
// fields, including the documentation URL, are a compatibility surface.
type fieldError struct {
	Input any      `json:"input"`
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Type  string   `json:"type"`
	URL   string   `json:"url"`
}

const (
	schemaViolationMsg  = "Input should be a valid dictionary or object to extract fields from"
	schemaViolationType = "model_attributes_type"
	schemaViolationURL  = "https://errors.pydantic.dev/2.5/v/model_attributes_type"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the {"detail": {"response": ...}} failure shape.
func writeError(w http.ResponseWriter, code int, response string) {
	writeJSON(w, code, map[string]errorBody{"detail": {Response: response}})
}

// writeSchemaViolation emits the structured per-field error list with the
// offending input echoed back.
func writeSchemaViolation(w http.ResponseWriter, input any) {
	violation := fieldError{
		Input: input,
		Loc:   []string{"body"},
		Msg:   schemaViolationMsg,
		Type:  schemaViolationType,
		URL:   schemaViolationURL,
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]fieldError{"detail": {violation}})
}
