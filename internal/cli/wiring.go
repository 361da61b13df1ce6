package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloo-solutions/wizvec/internal/config"
	"github.com/cloo-solutions/wizvec/internal/database"
	"github.com/cloo-solutions/wizvec/internal/localstore"
	"github.com/cloo-solutions/wizvec/internal/logging"
	"github.com/cloo-solutions/wizvec/internal/ollama"
	"github.com/cloo-solutions/wizvec/internal/openai"
	"github.com/cloo-solutions/wizvec/internal/repository"
	"github.com/cloo-solutions/wizvec/internal/service"
	"github.com/cloo-solutions/wizvec/internal/source"
	"github.com/cloo-solutions/wizvec/internal/storage"
	"github.com/cloo-solutions/wizvec/internal/telemetry"
	"github.com/spf13/cobra"
)

// loadConfig reads the --config file and environment. Flag overrides are
// applied by the caller before Validate.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Writer: w,
	})
}

// initTelemetry starts Sentry when a DSN is configured. The returned func
// flushes pending events.
func initTelemetry(cfg *config.Config, logger *slog.Logger) func() {
	if !cfg.HasSentry() {
		return func() {}
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.SampleRateFor(cfg.Environment),
	})
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		return func() {}
	}
	return shutdown
}

// store is a ChunkStore that can also report how many chunks it holds.
type store interface {
	service.ChunkStore
	Count(ctx context.Context, category string) (int64, error)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, func(), error) {
	switch cfg.Store {
	case config.StoreBadger:
		s, err := localstore.Open(cfg.BadgerPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("failed to close badger store", "error", err)
			}
		}, nil
	default:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL}, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewKnowledgeChunkRepository(pool, cfg.Table), pool.Close, nil
	}
}

func newEmbeddingClient(cfg *config.Config, logger *slog.Logger) (service.EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		return ollama.NewClient(ollama.Config{
			Model:      cfg.EmbeddingModel,
			BaseURL:    cfg.EmbeddingBaseURL,
			Dimensions: cfg.EmbeddingDimensions,
		}, logger)
	default:
		return openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.EmbeddingBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
		})
	}
}

func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*source.Reader, error) {
	if !cfg.HasS3() {
		return source.NewReader(nil, logger), nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return source.NewReader(s3Client, logger), nil
}

func pipelineConfig(cfg *config.Config) service.PipelineConfig {
	return service.PipelineConfig{
		BatchSize:        cfg.BatchSize,
		MinContentLength: cfg.MinContentLength,
		Backoff:          cfg.Backoff,
		Categories:       cfg.Categories,
	}
}

// ingestion bundles a wired pipeline with the store it writes to.
type ingestion struct {
	Pipeline *service.Pipeline
	Store    store
	Close    func()
}

// buildIngestion wires source, embedding client and store for cfg. Close
// releases the store.
func buildIngestion(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ingestion, error) {
	reader, err := newSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := newEmbeddingClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	chunkStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	logger.Info("pipeline ready",
		"store", cfg.Store,
		"embedding_provider", cfg.EmbeddingProvider,
		"batch_size", cfg.BatchSize,
	)

	return &ingestion{
		Pipeline: service.NewPipeline(reader, client, chunkStore, pipelineConfig(cfg), logger),
		Store:    chunkStore,
		Close:    closeStore,
	}, nil
}
