package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/calderaops/answerd/pkg/config"
)

// Client talks to an OpenAI-compatible completion API. One invocation per
// call, no retries; transient provider errors propagate to the caller.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	logger         zerolog.Logger
}

// NewClient builds a chain client for the given model reference.
func NewClient(ref config.ModelRef, logger zerolog.Logger) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 90 * time.Second},
		baseURL:        strings.TrimRight(ref.URL, "/"),
		apiKey:         ref.APIKey,
		model:          ref.Model,
		embeddingModel: ref.Model,
		logger:         logger.With().Str("component", "llm-client").Str("provider", ref.Provider).Logger(),
	}
}

// WithEmbeddingModel returns a copy of the client that embeds with a
// dedicated model instead of the completion model.
func (c *Client) WithEmbeddingModel(model string) *Client {
	clone := *c
	clone.embeddingModel = model
	return &clone
}

// Invoke sends the prompt to the chat completions endpoint and returns the
// model's text verbatim.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":    c.model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	}

	body, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return completion.Choices[0].Message.Content, nil
}

// Embed requests an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model": c.embeddingModel,
		"input": text,
	}

	body, err := c.post(ctx, "/embeddings", payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}

	return response.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
