// Package main wires the answerd gateway executable entry point and
// lifecycle management.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/calderaops/answerd/pkg/auth"
	"github.com/calderaops/answerd/pkg/config"
	"github.com/calderaops/answerd/pkg/llm"
	"github.com/calderaops/answerd/pkg/logging"
	"github.com/calderaops/answerd/pkg/query"
	"github.com/calderaops/answerd/pkg/rag"
	"github.com/calderaops/answerd/pkg/server"
	"github.com/calderaops/answerd/pkg/storage"
	"github.com/calderaops/answerd/pkg/telemetry"
)

const (
	defaultConfigPath        = "answerd.yaml"
	serviceName              = "answerd"
	telemetryShutdownTimeout = 5 * time.Second
	gracefulShutdownTimeout  = 10 * time.Second
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "answerd",
		Short: "Question-answering gateway for OpenShift and Kubernetes",
		Long: `answerd accepts natural-language questions bound to a conversation,
authenticates the caller against the cluster, filters out-of-domain topics and
answers through a language-model chain, optionally augmented with retrieved
reference passages.`,
		RunE: runServe,
	}

	rootCmd.Flags().StringP("config", "c", defaultConfigPath, "Path to the configuration file")
	rootCmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	rootCmd.Flags().String("log-level", "", "Log level (overrides config)")
	rootCmd.Flags().String("otel-endpoint", "", "OTLP endpoint (overrides config)")

	return rootCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// Apply flag overrides
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Address = listen
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if endpoint, _ := cmd.Flags().GetString("otel-endpoint"); endpoint != "" {
		cfg.Telemetry.OTLPEndpoint = endpoint
	}

	logger := logging.Setup(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return run(ctx, cfg, configPath, logger)
}

// run orchestrates the application lifecycle.
func run(ctx context.Context, cfg *config.Config, configPath string, logger zerolog.Logger) error {
	telemetryShutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Endpoint:     cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
		Environment:  os.Getenv("ANSWERD_ENVIRONMENT"),
		ResourceTags: map[string]string{"log.level": cfg.Logging.Level},
	})
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer shutdownTelemetry(telemetryShutdown, logger)

	if len(cfg.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}

	registry, err := config.NewRegistry(cfg.Providers, cfg.Answering)
	if err != nil {
		return fmt.Errorf("registry construction failed: %w", err)
	}
	if _, err := registry.Default(); err != nil {
		return fmt.Errorf("default model resolution failed: %w", err)
	}
	store := config.NewRegistryStore(registry)

	watcher, err := startConfigWatcher(ctx, configPath, store, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher not started")
	} else if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	chain := llm.NewRegistryChain(store, cfg.Reference.EmbeddingModel, logger)

	retriever, indexAvailable, err := openReferenceIndex(ctx, cfg.Reference, chain, logger)
	if err != nil {
		return err
	}

	history, err := openHistoryStore(cfg.History)
	if err != nil {
		return err
	}

	validator := query.NewValidator(chain, indexAvailable, logger)
	summarizer := query.NewSummarizer(chain, retriever, cfg.Reference.TopK, logger)
	orchestrator := query.NewOrchestrator(validator, summarizer, chain, history, logger)

	gate, err := buildGate(cfg.Auth, logger)
	if err != nil {
		return err
	}

	metrics := telemetry.NewHTTPMetrics()
	srv := server.New(orchestrator, gate, metrics, logger)
	handler := otelhttp.NewHandler(srv.Routes(), "answerd.http")

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listen on %s failed: %w", cfg.Server.Address, err)
	}
	logger.Info().Str("address", ln.Addr().String()).Msg("gateway listening")

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	return nil
}

// startConfigWatcher reloads the provider/model registry when the config file
// changes. The swap is atomic; in-flight requests keep the registry they
// loaded.
func startConfigWatcher(ctx context.Context, configPath string, store *config.RegistryStore, logger zerolog.Logger) (*config.Watcher, error) {
	if configPath == "" {
		return nil, nil
	}

	reload := func(path string) error {
		fresh, err := config.Load(path)
		if err != nil {
			return err
		}
		registry, err := config.NewRegistry(fresh.Providers, fresh.Answering)
		if err != nil {
			return err
		}
		if _, err := registry.Default(); err != nil {
			return err
		}
		store.Swap(registry)
		return nil
	}

	watcher, err := config.NewWatcher(configPath, reload, logger)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	return watcher, nil
}

func openReferenceIndex(ctx context.Context, cfg config.ReferenceConfig, embedder llm.Embedder, logger zerolog.Logger) (rag.Retriever, bool, error) {
	if cfg.IndexPath == "" {
		logger.Info().Msg("no reference index configured, answers will disclose missing RAG content")
		return nil, false, nil
	}

	index, err := rag.OpenSQLiteIndex(cfg.IndexPath, embedder)
	if err != nil {
		return nil, false, fmt.Errorf("reference index open failed: %w", err)
	}

	count, err := index.Count(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reference index count failed: %w", err)
	}
	if count == 0 {
		logger.Info().Str("path", cfg.IndexPath).Msg("reference index is empty, answers will disclose missing RAG content")
		return index, false, nil
	}

	logger.Info().Str("path", cfg.IndexPath).Int("passages", count).Msg("reference index loaded")
	return index, true, nil
}

func openHistoryStore(cfg config.HistoryConfig) (storage.HistoryStore, error) {
	switch cfg.Store {
	case "sqlite":
		store, err := storage.OpenSQLiteHistoryStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("history store open failed: %w", err)
		}
		return store, nil
	default:
		return storage.NewMemoryHistoryStore(), nil
	}
}

func buildGate(cfg config.AuthConfig, logger zerolog.Logger) (*auth.Gate, error) {
	if !cfg.Enabled {
		logger.Warn().Msg("authentication gate disabled by configuration")
		return auth.NewGate(nil, false, logger), nil
	}

	authority, err := auth.DefaultAuthority(cfg.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("kubernetes authority initialization failed: %w", err)
	}
	verifier := auth.NewVerifier(authority, authority, logger)
	return auth.NewGate(verifier, true, logger), nil
}

func shutdownTelemetry(shutdown func(context.Context) error, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown error")
	}
}
