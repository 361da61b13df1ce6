package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/cloo-solutions/wizvec/internal/telemetry"
	"github.com/google/uuid"
)

// KnowledgeSource loads the knowledge base snapshot.
type KnowledgeSource interface {
	Load(ctx context.Context, location string) (*domain.KnowledgeBase, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// PipelineConfig holds the tunables of an ingestion run.
type PipelineConfig struct {
	BatchSize        int
	MinContentLength int
	Backoff          time.Duration
	// Categories restricts ingestion when Run is called without a filter.
	Categories []string
}

// DefaultPipelineConfig returns the stock settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize:        DefaultBatchSize,
		MinContentLength: DefaultChunkConfig().MinContentLength,
		Backoff:          DefaultBackoff,
	}
}

// Validate returns a CONFIGURATION_ERROR for unusable settings.
func (c PipelineConfig) Validate() error {
	if c.BatchSize <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.MinContentLength < 0 {
		return domain.ConfigurationError(fmt.Sprintf("min content length must not be negative, got %d", c.MinContentLength))
	}
	if c.Backoff < 0 {
		return domain.ConfigurationError(fmt.Sprintf("backoff must not be negative, got %s", c.Backoff))
	}
	return nil
}

// Pipeline runs source loading, chunking and batch upserting for one snapshot.
type Pipeline struct {
	source   KnowledgeSource
	client   EmbeddingClient
	store    ChunkStore
	cfg      PipelineConfig
	chunker  *Chunker
	upserter *BatchUpserter
	observer ProgressObserver
	uuidGen  UUIDGenerator
	logger   *slog.Logger
}

// NewPipeline wires a Pipeline. Missing collaborators are reported by Run.
func NewPipeline(source KnowledgeSource, client EmbeddingClient, store ChunkStore, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   source,
		client:   client,
		store:    store,
		cfg:      cfg,
		chunker:  NewChunker(ChunkConfig{MinContentLength: cfg.MinContentLength}),
		upserter: NewBatchUpserter(client, store, cfg.Backoff, logger),
		observer: NopObserver{},
		uuidGen:  &DefaultUUIDGenerator{},
		logger:   logger,
	}
}

// WithObserver sets the progress observer for subsequent runs.
func (p *Pipeline) WithObserver(o ProgressObserver) *Pipeline {
	if o == nil {
		o = NopObserver{}
	}
	p.observer = o
	p.upserter.WithObserver(o)
	return p
}

// WithSleeper replaces the backoff wait, mainly for tests.
func (p *Pipeline) WithSleeper(s Sleeper) *Pipeline {
	p.upserter.WithSleeper(s)
	return p
}

// WithUUIDGenerator replaces the run id generator.
func (p *Pipeline) WithUUIDGenerator(g UUIDGenerator) *Pipeline {
	p.uuidGen = g
	return p
}

// Run ingests the snapshot at location. categoryFilter selects categories by
// name, case-insensitively; empty means the configured default, or all.
//
// Batch failures never produce an error, they are listed in the report.
// Source and configuration problems return a nil report and the error.
// When ctx is cancelled the partial report is returned with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, location string, categoryFilter []string) (*domain.UpsertReport, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	runID := p.uuidGen.NewString()
	ctx, span := telemetry.StartSpan(ctx, "Pipeline.Run", telemetry.SpanAttributes{
		RunID:     runID,
		Operation: "ingest",
	})
	defer span.End()

	report := domain.NewUpsertReport(runID, time.Now().UTC())
	logger := p.logger.With("run_id", runID)

	kb, err := p.source.Load(ctx, location)
	if err != nil {
		span.SetError(err)
		logger.Error("failed to load knowledge source", "location", location, "error", err)
		return nil, err
	}

	if len(categoryFilter) == 0 {
		categoryFilter = p.cfg.Categories
	}
	categories := p.selectCategories(kb, categoryFilter, logger)

	var chunks []domain.KnowledgeChunk
	for _, c := range categories {
		generated := p.chunker.Chunk(c.Name, c.Entries)
		logger.Info("chunked category",
			"category", c.Name,
			"entries", len(c.Entries),
			"chunks", len(generated),
		)
		p.observer.OnChunked(c.Name, len(generated))
		telemetry.AddBreadcrumb(ctx, "chunking", fmt.Sprintf("%s: %d chunks", c.Name, len(generated)))
		report.Categories = append(report.Categories, c.Name)
		chunks = append(chunks, generated...)
	}
	report.ChunksGenerated = len(chunks)

	logger.Info("starting ingestion", "chunks", len(chunks), "batch_size", p.cfg.BatchSize)
	p.upserter.upsertInto(ctx, report, chunks, p.cfg.BatchSize)
	report.FinishedAt = time.Now().UTC()

	logger.Info("ingestion finished",
		"status", report.Status(),
		"summary", report.Summary(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	span.SetTag("status", string(report.Status()))
	span.SetData("chunks_generated", report.ChunksGenerated)
	span.SetData("chunks_upserted", report.ChunksUpserted)
	p.observer.OnRunFinished(report)

	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

func (p *Pipeline) validate() error {
	switch {
	case p.source == nil:
		return domain.ConfigurationError("knowledge source is not configured")
	case p.client == nil:
		return domain.ConfigurationError("embedding client is not configured")
	case p.store == nil:
		return domain.ConfigurationError("vector store is not configured")
	}
	return p.cfg.Validate()
}

// selectCategories keeps document order regardless of filter order.
func (p *Pipeline) selectCategories(kb *domain.KnowledgeBase, filter []string, logger *slog.Logger) []domain.Category {
	if len(filter) == 0 {
		return kb.Categories
	}

	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		if _, ok := kb.Lookup(name); !ok {
			logger.Warn("category not present in knowledge source", "category", name)
			continue
		}
		wanted[strings.ToLower(name)] = true
	}

	selected := make([]domain.Category, 0, len(wanted))
	for _, c := range kb.Categories {
		if wanted[strings.ToLower(c.Name)] {
			selected = append(selected, c)
		}
	}
	return selected
}
