package config

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// ModelRef resolves a provider/model pair to the details a chain client needs.
type ModelRef struct {
	Provider string
	Model    string
	URL      string
	APIKey   string
}

// Registry is the process-wide provider/model registry. It is immutable after
// construction; request handlers read it without synchronization. Reloads
// build a fresh Registry and swap it through a RegistryStore.
type Registry struct {
	providers       map[string]providerEntry
	defaultProvider string
	defaultModel    string
}

type providerEntry struct {
	url    string
	apiKey string
	models map[string]struct{}
}

// NewRegistry builds a registry from the provider configuration. API keys are
// read once here so request handling never touches the filesystem.
func NewRegistry(providers ProvidersConfig, answering AnsweringConfig) (*Registry, error) {
	reg := &Registry{
		providers:       make(map[string]providerEntry, len(providers)),
		defaultProvider: answering.Provider,
		defaultModel:    answering.Model,
	}

	for name, p := range providers {
		entry := providerEntry{
			url:    p.URL,
			models: make(map[string]struct{}, len(p.Models)),
		}
		for _, m := range p.Models {
			entry.models[m] = struct{}{}
		}
		if p.APIKeyPath != "" {
			//nolint:gosec // Key path is controlled by admin/operator
			data, err := os.ReadFile(p.APIKeyPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read api key for provider %q: %w", name, err)
			}
			entry.apiKey = strings.TrimSpace(string(data))
		}
		reg.providers[name] = entry
	}

	return reg, nil
}

// Lookup resolves an explicit provider/model pair.
func (r *Registry) Lookup(provider, model string) (ModelRef, error) {
	entry, ok := r.providers[provider]
	if !ok {
		return ModelRef{}, fmt.Errorf("unknown provider %q", provider)
	}
	if _, ok := entry.models[model]; !ok {
		return ModelRef{}, fmt.Errorf("provider %q has no model %q", provider, model)
	}
	return ModelRef{Provider: provider, Model: model, URL: entry.url, APIKey: entry.apiKey}, nil
}

// Default resolves the configured default provider/model pair.
func (r *Registry) Default() (ModelRef, error) {
	return r.Lookup(r.defaultProvider, r.defaultModel)
}

// Providers returns the provider names known to the registry.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// RegistryStore holds the current registry behind an atomic pointer so that
// reloads swap the whole structure and in-flight readers never observe a
// partially updated registry.
type RegistryStore struct {
	current atomic.Pointer[Registry]
}

// NewRegistryStore creates a store seeded with the given registry.
func NewRegistryStore(reg *Registry) *RegistryStore {
	s := &RegistryStore{}
	s.current.Store(reg)
	return s
}

// Load returns the current registry. Callers must load once per request and
// use the returned value for the whole request.
func (s *RegistryStore) Load() *Registry {
	return s.current.Load()
}

// Swap replaces the current registry wholesale.
func (s *RegistryStore) Swap(reg *Registry) {
	s.current.Store(reg)
}
