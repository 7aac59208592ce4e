// Package config provides configuration structures and loading logic for the gateway.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Answering AnsweringConfig `yaml:"answering"`
	Reference ReferenceConfig `yaml:"reference"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// AuthConfig controls the bearer-token authentication gate.
type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Kubeconfig string `yaml:"kubeconfig"`
}

// ProvidersConfig maps provider names to their connection details and models.
type ProvidersConfig map[string]ProviderConfig

// ProviderConfig describes one LLM provider endpoint and its models.
type ProviderConfig struct {
	URL        string   `yaml:"url"`
	APIKeyPath string   `yaml:"api_key_path"`
	Models     []string `yaml:"models"`
}

// AnsweringConfig selects the default provider/model pair used by the
// summarization and validation chains.
type AnsweringConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ReferenceConfig holds configuration for the retrieval index.
type ReferenceConfig struct {
	IndexPath      string `yaml:"index_path"`
	TopK           int    `yaml:"top_k"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// HistoryConfig holds configuration for the conversation transcript store.
type HistoryConfig struct {
	Store string `yaml:"store"` // "memory" or "sqlite"
	Path  string `yaml:"path"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Server: ServerConfig{
			Address: ":8080",
		},
		Reference: ReferenceConfig{
			IndexPath: "data/index.db",
			TopK:      4,
		},
		History: HistoryConfig{
			Store: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("ANSWERD_LISTEN_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("ANSWERD_AUTH_ENABLED"); val != "" {
		cfg.Auth.Enabled = val == "true"
	}
	if val := os.Getenv("ANSWERD_KUBECONFIG"); val != "" {
		cfg.Auth.Kubeconfig = val
	}
	if val := os.Getenv("ANSWERD_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("ANSWERD_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("ANSWERD_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("ANSWERD_INDEX_PATH"); val != "" {
		cfg.Reference.IndexPath = val
	}
	if val := os.Getenv("ANSWERD_HISTORY_STORE"); val != "" {
		cfg.History.Store = val
	}
	if val := os.Getenv("ANSWERD_HISTORY_PATH"); val != "" {
		cfg.History.Path = val
	}
}

// Validate performs comprehensive validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}

	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers configuration: %w", err)
	}

	if err := c.Answering.Validate(c.Providers); err != nil {
		return fmt.Errorf("answering configuration: %w", err)
	}

	if err := c.Reference.Validate(); err != nil {
		return fmt.Errorf("reference configuration: %w", err)
	}

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history configuration: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	return nil
}

// Validate performs validation of server configuration.
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = ":8080"
	}
	return nil
}

// Validate performs validation of the provider map.
func (c ProvidersConfig) Validate() error {
	for name, provider := range c {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("provider with empty name")
		}
		if strings.TrimSpace(provider.URL) == "" {
			return fmt.Errorf("provider %q missing url", name)
		}
		if len(provider.Models) == 0 {
			return fmt.Errorf("provider %q declares no models", name)
		}
	}
	return nil
}

// Validate checks that the default answering provider/model pair exists in the
// provider registry. A missing entry is a startup error, never a request-time one.
func (c *AnsweringConfig) Validate(providers ProvidersConfig) error {
	if len(providers) == 0 {
		// No providers configured at all; tolerated so the binary can start in
		// test harnesses that inject chains directly.
		return nil
	}
	provider, ok := providers[c.Provider]
	if !ok {
		return fmt.Errorf("default provider %q not present in providers", c.Provider)
	}
	for _, model := range provider.Models {
		if model == c.Model {
			return nil
		}
	}
	return fmt.Errorf("default model %q not declared by provider %q", c.Model, c.Provider)
}

// Validate performs validation of reference index configuration.
func (c *ReferenceConfig) Validate() error {
	if c.TopK <= 0 {
		c.TopK = 4
	}
	return nil
}

// Validate performs validation of the history store configuration.
func (c *HistoryConfig) Validate() error {
	store := strings.TrimSpace(strings.ToLower(c.Store))
	switch store {
	case "", "memory":
		c.Store = "memory"
	case "sqlite":
		c.Store = "sqlite"
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("history store %q requires a path", c.Store)
		}
	default:
		return fmt.Errorf("invalid history store %q, supported stores: memory, sqlite", c.Store)
	}
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "trace", "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: trace, debug, info, warn, error", c.Level)
	}
}
