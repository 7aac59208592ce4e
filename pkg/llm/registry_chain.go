package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/calderaops/answerd/pkg/config"
)

// RegistryChain is a Chain that resolves the default provider/model pair
// from the current registry on every invocation, so a configuration reload
// takes effect without restarting. The underlying HTTP client is built once
// and reused until the resolved reference changes.
type RegistryChain struct {
	store          *config.RegistryStore
	embeddingModel string
	logger         zerolog.Logger

	mu     sync.Mutex
	ref    config.ModelRef
	client *Client
}

// NewRegistryChain creates a chain bound to the registry store.
func NewRegistryChain(store *config.RegistryStore, embeddingModel string, logger zerolog.Logger) *RegistryChain {
	return &RegistryChain{
		store:          store,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
}

// Invoke resolves the current default model and forwards the prompt.
func (r *RegistryChain) Invoke(ctx context.Context, prompt string) (string, error) {
	client, err := r.resolve()
	if err != nil {
		return "", err
	}
	return client.Invoke(ctx, prompt)
}

// Embed resolves the current default model and embeds the text.
func (r *RegistryChain) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := r.resolve()
	if err != nil {
		return nil, err
	}
	return client.Embed(ctx, text)
}

func (r *RegistryChain) resolve() (*Client, error) {
	ref, err := r.store.Load().Default()
	if err != nil {
		return nil, fmt.Errorf("resolving default model: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil || r.ref != ref {
		client := NewClient(ref, r.logger)
		if r.embeddingModel != "" {
			client = client.WithEmbeddingModel(r.embeddingModel)
		}
		r.client = client
		r.ref = ref
	}
	return r.client, nil
}
