// ABOUTME: Shared wiring used by every command: config, logger, store, model clients, pipeline
// ABOUTME: Commands ask only for what they need so read-only commands work without API keys
package commands

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/agents"
	"github.com/harper/mwgen/internal/config"
	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/logging"
	"github.com/harper/mwgen/internal/retrieval"
	"github.com/harper/mwgen/internal/storage/sqlite"
	"github.com/harper/mwgen/internal/telemetry"
)

// appOptions selects which parts of the app a command needs
type appOptions struct {
	// completion builds the chat client and pipeline; it requires credentials
	completion bool
	// embeddings builds the embedder when a key is present
	embeddings bool
	strategy   string
	logFormat  string
	metrics    *telemetry.Collector
	// tracing exports spans to the configured OTLP endpoint
	tracing bool
}

// app holds the services built for one command invocation
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *sqlite.Store
	embedder  llm.Embedder
	retriever retrieval.Retriever
	indexer   *retrieval.Indexer
	pipeline  *core.Pipeline
	metrics   *telemetry.Collector
	tracing   *telemetry.TracerProvider
}

// loadConfig reads configuration and builds the logger honoring --verbose and --quiet
func loadConfig(format string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	if format == "" {
		format = cfg.LogFormat
	}

	logger, err := logging.New(level, format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newApp builds the services described by opts. Call Close when done.
func newApp(opts appOptions) (*app, error) {
	cfg, logger, err := loadConfig(opts.logFormat)
	if err != nil {
		return nil, err
	}

	if opts.completion {
		if err := cfg.RequireCompletion(); err != nil {
			return nil, err
		}
	}

	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store, metrics: opts.metrics}

	if opts.embeddings || opts.completion {
		if err := a.buildEmbedder(); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	if opts.tracing {
		tp, err := telemetry.InitTracing(context.Background(), cfg.OTLPEndpoint, versionInfo.Version)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.tracing = tp
	}

	if opts.completion {
		if err := a.buildPipeline(opts); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) guard(name string) *llm.Guard {
	return llm.NewGuard(llm.GuardConfig{
		Name:              name,
		RequestsPerSecond: a.cfg.RequestsPerSecond,
		Burst:             a.cfg.Burst,
		MaxFailures:       a.cfg.BreakerFailures,
		OpenTimeout:       a.cfg.BreakerTimeout,
		Timeout:           a.cfg.Timeout,
	}, a.logger)
}

// buildEmbedder sets a.embedder when an OpenAI key is configured
func (a *app) buildEmbedder() error {
	if !a.cfg.EmbeddingsAvailable() {
		a.logger.Debug("embeddings unavailable, no OpenAI key")
		return nil
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         a.cfg.OpenAIKey,
		BaseURL:        a.cfg.OpenAIBaseURL,
		ChatModel:      a.cfg.ChatModel,
		EmbeddingModel: a.cfg.EmbeddingModel,
		Timeout:        a.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("initializing embeddings client: %w", err)
	}
	a.embedder = a.guard("openai-embeddings").Embedder(client)
	return nil
}

// completer builds the chat client for the configured provider
func (a *app) completer() (llm.Completer, error) {
	switch a.cfg.Provider {
	case config.ProviderAnthropic:
		client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:    a.cfg.AnthropicKey,
			BaseURL:   a.cfg.AnthropicBaseURL,
			ChatModel: a.cfg.ChatModel,
			Timeout:   a.cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return a.guard("anthropic").Completer(client), nil
	default:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:         a.cfg.OpenAIKey,
			BaseURL:        a.cfg.OpenAIBaseURL,
			ChatModel:      a.cfg.ChatModel,
			EmbeddingModel: a.cfg.EmbeddingModel,
			Timeout:        a.cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return a.guard("openai").Completer(client), nil
	}
}

func (a *app) buildPipeline(opts appOptions) error {
	client, err := a.completer()
	if err != nil {
		return fmt.Errorf("initializing %s client: %w", a.cfg.Provider, err)
	}

	set := agents.NewSet(client, agents.Config{
		Model:          a.cfg.ChatModel,
		TargetLanguage: a.cfg.TargetLanguage,
		Logger:         a.logger,
	})

	// An untyped nil keeps retrieval from seeing a non-nil interface around a nil embedder
	var embedder retrieval.Embedder
	if a.embedder != nil {
		embedder = a.embedder
	}

	a.retriever, err = retrieval.New(opts.strategy, a.store, a.store, embedder, a.cfg.ChunkSize, a.logger)
	if err != nil {
		return err
	}

	var indexer core.CaseIndexer
	if a.cfg.IndexOnSave && a.embedder != nil {
		a.indexer = retrieval.NewIndexer(a.embedder, a.store, a.cfg.ChunkSize, a.logger)
		indexer = a.indexer
	}

	var tracer trace.Tracer
	if a.tracing != nil {
		tracer = a.tracing.Tracer()
	}

	a.pipeline = core.NewPipeline(core.PipelineConfig{
		Agents:    set,
		Store:     a.store,
		Retriever: a.retriever,
		Indexer:   indexer,
		Metrics:   a.metrics,
		Tracer:    tracer,
		Logger:    a.logger,
	})
	return nil
}

// Close flushes spans and the logger, then releases the store
func (a *app) Close() error {
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("trace shutdown failed", zap.Error(err))
		}
		cancel()
	}
	_ = a.logger.Sync()
	return a.store.Close()
}
