package llm

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderaops/answerd/pkg/config"
)

func registryFor(t *testing.T, url, model string) *config.Registry {
	t.Helper()
	reg, err := config.NewRegistry(config.ProvidersConfig{
		"fake": {URL: url, Models: []string{model}},
	}, config.AnsweringConfig{Provider: "fake", Model: model})
	require.NoError(t, err)
	return reg
}

func TestRegistryChain_FollowsRegistrySwap(t *testing.T) {
	provider := &fakeProvider{t: t, completion: "ok"}
	ts := newProviderServer(t, provider)

	store := config.NewRegistryStore(registryFor(t, ts, "model-a"))
	chain := NewRegistryChain(store, "", zerolog.Nop())

	_, err := chain.Invoke(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "model-a", provider.lastPayload["model"])

	store.Swap(registryFor(t, ts, "model-b"))

	_, err = chain.Invoke(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "model-b", provider.lastPayload["model"])
}

func TestRegistryChain_EmbedsWithDedicatedModel(t *testing.T) {
	provider := &fakeProvider{t: t, embedding: []float32{0.5}}
	ts := newProviderServer(t, provider)

	store := config.NewRegistryStore(registryFor(t, ts, "chat-model"))
	chain := NewRegistryChain(store, "embedder-v1", zerolog.Nop())

	_, err := chain.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "embedder-v1", provider.lastPayload["model"])

	// Completions still use the chat model.
	provider.completion = "ok"
	_, err = chain.Invoke(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "chat-model", provider.lastPayload["model"])
}

func TestRegistryChain_UnresolvableDefault(t *testing.T) {
	reg, err := config.NewRegistry(config.ProvidersConfig{
		"fake": {URL: "http://unused", Models: []string{"model-a"}},
	}, config.AnsweringConfig{Provider: "fake", Model: "gone"})
	require.NoError(t, err)

	chain := NewRegistryChain(config.NewRegistryStore(reg), "", zerolog.Nop())
	_, err = chain.Invoke(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving default model")
}
